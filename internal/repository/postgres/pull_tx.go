package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
)

// pullTx implements repository.PullTx over one read-only snapshot transaction.
type pullTx struct {
	tx     pgx.Tx
	device *model.Device
	family *model.Family
}

var _ repository.PullTx = (*pullTx)(nil)

func (p *pullTx) Device() *model.Device { return p.device }
func (p *pullTx) Family() *model.Family { return p.family }

func (p *pullTx) FindUser(ctx context.Context, userID string) (*model.User, error) {
	const q = `
SELECT family_id, user_id, name, type, second_password_hash, second_password_salt,
       time_zone, relax_primary_device, blocked_times, disable_limits_until
FROM users WHERE family_id=$1 AND user_id=$2`
	return scanUser(p.tx.QueryRow(ctx, q, p.family.FamilyID, userID))
}

func (p *pullTx) ListDevices(ctx context.Context) ([]model.Device, error) {
	const q = `
SELECT family_id, device_id, name, model, added_at, current_user_id, auth_token,
       next_sequence_number, installed_apps_version, is_user_kept_signed_in
FROM devices WHERE family_id=$1 ORDER BY device_id`
	rows, err := p.tx.Query(ctx, q, p.family.FamilyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.FamilyID, &d.DeviceID, &d.Name, &d.Model, &d.AddedAt,
			&d.CurrentUserID, &d.AuthToken, &d.NextSequenceNumber,
			&d.InstalledAppsVersion, &d.IsUserKeptSignedIn); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *pullTx) ListUsers(ctx context.Context) ([]model.User, error) {
	const q = `
SELECT family_id, user_id, name, type, second_password_hash, second_password_salt,
       time_zone, relax_primary_device, blocked_times, disable_limits_until
FROM users WHERE family_id=$1 ORDER BY user_id`
	rows, err := p.tx.Query(ctx, q, p.family.FamilyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.FamilyID, &u.UserID, &u.Name, &u.Type, &u.SecondPasswordHash,
			&u.SecondPasswordSalt, &u.TimeZone, &u.RelaxPrimaryDevice, &u.BlockedTimes,
			&u.DisableLimitsUntil); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *pullTx) ListCategories(ctx context.Context) ([]model.Category, error) {
	const q = `
SELECT family_id, category_id, child_id, title, blocked_minutes_in_week, extra_time,
       temp_blocked, time_warning_flags, base_version, apps_version, used_times_version, rules_version
FROM categories WHERE family_id=$1 ORDER BY category_id`
	rows, err := p.tx.Query(ctx, q, p.family.FamilyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.FamilyID, &c.CategoryID, &c.ChildID, &c.Title,
			&c.BlockedMinutesInWeek, &c.ExtraTime, &c.TempBlocked, &c.TimeWarningFlags,
			&c.BaseVersion, &c.AppsVersion, &c.UsedTimesVersion, &c.RulesVersion); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *pullTx) CategoryApps(ctx context.Context, categoryID string) ([]string, error) {
	const q = `
SELECT package_name FROM category_apps
WHERE family_id=$1 AND category_id=$2 ORDER BY package_name`
	rows, err := p.tx.Query(ctx, q, p.family.FamilyID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var pkg string
		if err := rows.Scan(&pkg); err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	return out, rows.Err()
}

func (p *pullTx) CategoryUsedTimes(ctx context.Context, categoryID string) ([]model.UsedTimeItem, error) {
	const q = `
SELECT day_of_epoch, used_millis FROM category_used_times
WHERE family_id=$1 AND category_id=$2 ORDER BY day_of_epoch`
	rows, err := p.tx.Query(ctx, q, p.family.FamilyID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UsedTimeItem{}
	for rows.Next() {
		var t model.UsedTimeItem
		if err := rows.Scan(&t.DayOfEpoch, &t.UsedMillis); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *pullTx) CategoryRules(ctx context.Context, categoryID string) ([]model.TimeLimitRule, error) {
	const q = `
SELECT rule_id, category_id, apply_to_extra_time, day_mask, max_time_millis
FROM time_limit_rules WHERE family_id=$1 AND category_id=$2 ORDER BY rule_id`
	rows, err := p.tx.Query(ctx, q, p.family.FamilyID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TimeLimitRule{}
	for rows.Next() {
		var r model.TimeLimitRule
		if err := rows.Scan(&r.RuleID, &r.CategoryID, &r.ApplyToExtraTime, &r.DayMask, &r.MaxTimeMillis); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *pullTx) InstalledApps(ctx context.Context, deviceID string) ([]model.InstalledApp, error) {
	const q = `
SELECT package_name, title FROM installed_apps
WHERE family_id=$1 AND device_id=$2 ORDER BY package_name`
	rows, err := p.tx.Query(ctx, q, p.family.FamilyID, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.InstalledApp{}
	for rows.Next() {
		var a model.InstalledApp
		if err := rows.Scan(&a.PackageName, &a.Title); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
