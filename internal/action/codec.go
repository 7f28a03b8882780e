package action

import (
	"encoding/json"
	"fmt"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
)

// wireHead is the part of every wire action shared across variants.
type wireHead struct {
	Type string `json:"type"`
}

// Encode converts an action to its tagged JSON wire form.
func Encode(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	// splice the type tag into the payload object
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", a.Type()))
	return json.Marshal(fields)
}

// Decode parses a wire action and re-runs every construction-time invariant.
// A malformed or tampered payload fails here, never later during apply.
func Decode(wire []byte) (Action, error) {
	var head wireHead
	if err := json.Unmarshal(wire, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformedAction, err)
	}

	switch head.Type {
	case TypeAddCategoryNetworkID:
		var w AddCategoryNetworkID
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewAddCategoryNetworkID(w.CategoryID, w.ItemID, w.HashedNetworkID)
	case TypeResetParentBlockedTimes:
		var w ResetParentBlockedTimes
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewResetParentBlockedTimes(w.ParentID)
	case TypeSetRelaxPrimaryDevice:
		var w SetRelaxPrimaryDevice
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewSetRelaxPrimaryDevice(w.UserID, w.Relax)
	case TypeUpdateCategoryTimeWarnings:
		var w UpdateCategoryTimeWarnings
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewUpdateCategoryTimeWarnings(w.CategoryID, w.Enable, w.Flags)
	case TypeUpdateCategoryTitle:
		var w UpdateCategoryTitle
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewUpdateCategoryTitle(w.CategoryID, w.NewTitle)
	case TypeSetCategoryExtraTime:
		var w SetCategoryExtraTime
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewSetCategoryExtraTime(w.CategoryID, w.NewExtraTime)
	case TypeDeleteCategory:
		var w DeleteCategory
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewDeleteCategory(w.CategoryID)
	case TypeUpdateCategoryAssignedApps:
		var w UpdateCategoryAssignedApps
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewUpdateCategoryAssignedApps(w.CategoryID, w.PackageNames)
	case TypeUpdateTimeLimitRule:
		var w UpdateTimeLimitRule
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewUpdateTimeLimitRule(w.RuleID, w.CategoryID, w.ApplyToExtraTime, w.DayMask, w.MaxTimeMillis)
	case TypeAddUsedTime:
		var w AddUsedTime
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewAddUsedTime(w.CategoryID, w.DayOfEpoch, w.TimeToAdd)
	case TypeSetDeviceUser:
		var w SetDeviceUser
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		return NewSetDeviceUser(w.DeviceID, w.UserID)
	case TypeUpdateInstalledApps:
		var w UpdateInstalledApps
		if err := strictUnmarshal(wire, &w); err != nil {
			return nil, err
		}
		if w.Apps == nil {
			w.Apps = []model.InstalledApp{}
		}
		return NewUpdateInstalledApps(w.Apps)
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownActionType, head.Type)
	}
}

func strictUnmarshal(wire []byte, out any) error {
	if err := json.Unmarshal(wire, out); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrMalformedAction, err)
	}
	return nil
}
