package service

import (
	"context"
	"fmt"

	"github.com/famsync/famsync/internal/action"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
)

// categoryGroups flags the per-category resource groups touched by a batch.
type categoryGroups struct {
	base      bool
	apps      bool
	usedTimes bool
	rules     bool
}

// changeSet accumulates the resource groups touched while applying one batch,
// so that every touched group gets exactly one fresh version token per push.
type changeSet struct {
	deviceList    bool
	userList      bool
	installedApps map[string]struct{}
	categories    map[string]*categoryGroups
	full          bool
	important     bool
}

func newChangeSet() *changeSet {
	return &changeSet{
		installedApps: map[string]struct{}{},
		categories:    map[string]*categoryGroups{},
	}
}

func (cs *changeSet) category(id string) *categoryGroups {
	g, ok := cs.categories[id]
	if !ok {
		g = &categoryGroups{}
		cs.categories[id] = g
	}
	return g
}

// dropCategory discards pending bumps of a deleted category; its disappearance
// is carried by the full version bump instead.
func (cs *changeSet) dropCategory(id string) {
	delete(cs.categories, id)
	cs.full = true
}

// applyAction performs the mutation of one decoded action through the push
// transaction handle and records the touched groups. The action set is closed;
// the default branch is unreachable for values produced by action.Decode.
func applyAction(ctx context.Context, tx repository.PushTx, device *model.Device, act action.Action, cs *changeSet) error {
	switch a := act.(type) {
	case action.AddCategoryNetworkID:
		if err := tx.AddCategoryNetworkID(ctx, a.CategoryID, a.ItemID, a.HashedNetworkID); err != nil {
			return err
		}
		cs.category(a.CategoryID).base = true
	case action.ResetParentBlockedTimes:
		if err := tx.ResetParentBlockedTimes(ctx, a.ParentID); err != nil {
			return err
		}
		cs.userList = true
		cs.important = true
	case action.SetRelaxPrimaryDevice:
		if err := tx.SetRelaxPrimaryDevice(ctx, a.UserID, a.Relax); err != nil {
			return err
		}
		cs.userList = true
		cs.important = true
	case action.UpdateCategoryTimeWarnings:
		if err := tx.UpdateCategoryTimeWarnings(ctx, a.CategoryID, a.Enable, a.Flags); err != nil {
			return err
		}
		cs.category(a.CategoryID).base = true
	case action.UpdateCategoryTitle:
		if err := tx.SetCategoryTitle(ctx, a.CategoryID, a.NewTitle); err != nil {
			return err
		}
		cs.category(a.CategoryID).base = true
	case action.SetCategoryExtraTime:
		if err := tx.SetCategoryExtraTime(ctx, a.CategoryID, a.NewExtraTime); err != nil {
			return err
		}
		cs.category(a.CategoryID).base = true
	case action.DeleteCategory:
		if err := tx.DeleteCategory(ctx, a.CategoryID); err != nil {
			return err
		}
		cs.dropCategory(a.CategoryID)
	case action.UpdateCategoryAssignedApps:
		if err := tx.SetCategoryApps(ctx, a.CategoryID, a.PackageNames); err != nil {
			return err
		}
		cs.category(a.CategoryID).apps = true
	case action.UpdateTimeLimitRule:
		rule := model.TimeLimitRule{
			RuleID:           a.RuleID,
			CategoryID:       a.CategoryID,
			ApplyToExtraTime: a.ApplyToExtraTime,
			DayMask:          a.DayMask,
			MaxTimeMillis:    a.MaxTimeMillis,
		}
		if err := tx.UpsertTimeLimitRule(ctx, rule); err != nil {
			return err
		}
		cs.category(a.CategoryID).rules = true
	case action.AddUsedTime:
		if err := tx.AddUsedTime(ctx, a.CategoryID, a.DayOfEpoch, a.TimeToAdd); err != nil {
			return err
		}
		cs.category(a.CategoryID).usedTimes = true
	case action.SetDeviceUser:
		if err := tx.SetDeviceUser(ctx, a.DeviceID, a.UserID); err != nil {
			return err
		}
		cs.deviceList = true
	case action.UpdateInstalledApps:
		if err := tx.SetInstalledApps(ctx, device.DeviceID, a.Apps); err != nil {
			return err
		}
		cs.installedApps[device.DeviceID] = struct{}{}
	default:
		return fmt.Errorf("unhandled action type %s", act.Type())
	}
	return nil
}
