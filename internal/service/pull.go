package service

import (
	"context"
	"sort"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
)

// Pull computes the sparse diff between the client's last-known version vector
// and the authority's current one, inside a single consistent snapshot.
// Groups whose tokens match are omitted entirely; a full version mismatch
// returns every group.
func (s *SyncService) Pull(ctx context.Context, deviceAuthToken string, status model.ClientDataStatus) (*model.ServerDataStatus, error) {
	if deviceAuthToken == "" {
		return nil, errs.ErrUnauthorized
	}
	var out *model.ServerDataStatus
	err := s.store.RunPullTx(ctx, deviceAuthToken, func(ctx context.Context, tx repository.PullTx) error {
		diff, err := s.buildDiff(ctx, tx, status)
		if err != nil {
			return err
		}
		out = diff
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SyncService) buildDiff(ctx context.Context, tx repository.PullTx, status model.ClientDataStatus) (*model.ServerDataStatus, error) {
	family := tx.Family()
	full := status.FullVersion != family.FullVersion

	out := &model.ServerDataStatus{
		FullVersion: family.FullVersion,
		Message:     s.message,
	}

	devices, err := tx.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	if full || status.Devices != family.DeviceListVersion {
		list := &model.ServerDeviceList{Version: family.DeviceListVersion, Data: []model.ServerDeviceData{}}
		for _, d := range devices {
			list.Data = append(list.Data, model.ServerDeviceData{
				DeviceID:           d.DeviceID,
				Name:               d.Name,
				Model:              d.Model,
				AddedAt:            d.AddedAt,
				CurrentUserID:      d.CurrentUserID,
				IsUserKeptSignedIn: d.IsUserKeptSignedIn,
			})
		}
		out.Devices = list
	}

	for _, d := range devices {
		if !full && status.Apps[d.DeviceID] == d.InstalledAppsVersion {
			continue
		}
		apps, err := tx.InstalledApps(ctx, d.DeviceID)
		if err != nil {
			return nil, err
		}
		out.Apps = append(out.Apps, model.ServerInstalledApps{
			DeviceID: d.DeviceID,
			Apps:     apps,
			Version:  d.InstalledAppsVersion,
		})
	}

	categories, err := tx.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		seen[c.CategoryID] = struct{}{}
		client, known := status.Categories[c.CategoryID]

		if full || !known || client.Base != c.BaseVersion {
			out.CategoryBase = append(out.CategoryBase, model.ServerCategoryBase{
				CategoryID:           c.CategoryID,
				ChildID:              c.ChildID,
				Title:                c.Title,
				BlockedMinutesInWeek: c.BlockedMinutesInWeek,
				ExtraTime:            c.ExtraTime,
				TempBlocked:          c.TempBlocked,
				TimeWarningFlags:     c.TimeWarningFlags,
				Version:              c.BaseVersion,
			})
		}
		if full || !known || client.Apps != c.AppsVersion {
			apps, err := tx.CategoryApps(ctx, c.CategoryID)
			if err != nil {
				return nil, err
			}
			out.CategoryApps = append(out.CategoryApps, model.ServerCategoryApps{
				CategoryID: c.CategoryID,
				Apps:       apps,
				Version:    c.AppsVersion,
			})
		}
		if full || !known || client.UsedTimes != c.UsedTimesVersion {
			times, err := tx.CategoryUsedTimes(ctx, c.CategoryID)
			if err != nil {
				return nil, err
			}
			out.UsedTimes = append(out.UsedTimes, model.ServerCategoryUsedTimes{
				CategoryID: c.CategoryID,
				Times:      times,
				Version:    c.UsedTimesVersion,
			})
		}
		if full || !known || client.Rules != c.RulesVersion {
			rules, err := tx.CategoryRules(ctx, c.CategoryID)
			if err != nil {
				return nil, err
			}
			out.Rules = append(out.Rules, model.ServerCategoryRules{
				CategoryID: c.CategoryID,
				Rules:      rules,
				Version:    c.RulesVersion,
			})
		}
	}

	// categories the client still knows but the server no longer has
	for categoryID := range status.Categories {
		if _, ok := seen[categoryID]; !ok {
			out.RmCategories = append(out.RmCategories, categoryID)
		}
	}
	sort.Strings(out.RmCategories)

	if full || status.Users != family.UserListVersion {
		users, err := tx.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		list := &model.ServerUserList{Version: family.UserListVersion, Data: []model.ServerUserEntry{}}
		for _, u := range users {
			list.Data = append(list.Data, model.ServerUserEntry{
				UserID:             u.UserID,
				Name:               u.Name,
				Type:               u.Type,
				TimeZone:           u.TimeZone,
				RelaxPrimaryDevice: u.RelaxPrimaryDevice,
				BlockedTimes:       u.BlockedTimes,
				DisableLimitsUntil: u.DisableLimitsUntil,
			})
		}
		out.Users = list
	}

	return out, nil
}
