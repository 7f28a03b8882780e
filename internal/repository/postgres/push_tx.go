package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
)

// pushTx implements repository.PushTx over one open pgx transaction with the
// device and family rows locked.
type pushTx struct {
	tx     pgx.Tx
	device *model.Device
	family *model.Family
}

var _ repository.PushTx = (*pushTx)(nil)

func (p *pushTx) Device() *model.Device { return p.device }
func (p *pushTx) Family() *model.Family { return p.family }

func (p *pushTx) FindUser(ctx context.Context, userID string) (*model.User, error) {
	const q = `
SELECT family_id, user_id, name, type, second_password_hash, second_password_salt,
       time_zone, relax_primary_device, blocked_times, disable_limits_until
FROM users WHERE family_id=$1 AND user_id=$2`
	return scanUser(p.tx.QueryRow(ctx, q, p.family.FamilyID, userID))
}

func (p *pushTx) AddCategoryNetworkID(ctx context.Context, categoryID, itemID, hashedNetworkID string) error {
	const q = `
INSERT INTO category_network_ids (family_id, category_id, item_id, hashed_network_id)
VALUES ($1,$2,$3,$4)`
	_, err := p.tx.Exec(ctx, q, p.family.FamilyID, categoryID, itemID, hashedNetworkID)
	if isUniqueViolation(err) || isForeignKeyViolation(err) {
		return fmt.Errorf("network id %s: %w", itemID, errs.ErrConflict)
	}
	return err
}

func (p *pushTx) ResetParentBlockedTimes(ctx context.Context, parentID string) error {
	const q = `
UPDATE users SET blocked_times=''
WHERE family_id=$1 AND user_id=$2 AND type='parent'`
	return p.execExpectingTarget(ctx, q, "parent "+parentID, p.family.FamilyID, parentID)
}

func (p *pushTx) SetRelaxPrimaryDevice(ctx context.Context, userID string, relax bool) error {
	const q = `
UPDATE users SET relax_primary_device=$3
WHERE family_id=$1 AND user_id=$2`
	return p.execExpectingTarget(ctx, q, "user "+userID, p.family.FamilyID, userID, relax)
}

func (p *pushTx) UpdateCategoryTimeWarnings(ctx context.Context, categoryID string, enable bool, flags int32) error {
	var q string
	if enable {
		q = `UPDATE categories SET time_warning_flags = time_warning_flags | $3
WHERE family_id=$1 AND category_id=$2`
	} else {
		q = `UPDATE categories SET time_warning_flags = time_warning_flags & ~$3
WHERE family_id=$1 AND category_id=$2`
	}
	return p.execExpectingTarget(ctx, q, "category "+categoryID, p.family.FamilyID, categoryID, flags)
}

func (p *pushTx) SetCategoryTitle(ctx context.Context, categoryID, title string) error {
	const q = `UPDATE categories SET title=$3 WHERE family_id=$1 AND category_id=$2`
	return p.execExpectingTarget(ctx, q, "category "+categoryID, p.family.FamilyID, categoryID, title)
}

func (p *pushTx) SetCategoryExtraTime(ctx context.Context, categoryID string, extraTime int64) error {
	const q = `UPDATE categories SET extra_time=$3 WHERE family_id=$1 AND category_id=$2`
	return p.execExpectingTarget(ctx, q, "category "+categoryID, p.family.FamilyID, categoryID, extraTime)
}

func (p *pushTx) DeleteCategory(ctx context.Context, categoryID string) error {
	// dependent rows go away via ON DELETE CASCADE
	const q = `DELETE FROM categories WHERE family_id=$1 AND category_id=$2`
	return p.execExpectingTarget(ctx, q, "category "+categoryID, p.family.FamilyID, categoryID)
}

func (p *pushTx) SetCategoryApps(ctx context.Context, categoryID string, packageNames []string) error {
	const del = `DELETE FROM category_apps WHERE family_id=$1 AND category_id=$2`
	if _, err := p.tx.Exec(ctx, del, p.family.FamilyID, categoryID); err != nil {
		return err
	}
	const ins = `INSERT INTO category_apps (family_id, category_id, package_name) VALUES ($1,$2,$3)
ON CONFLICT DO NOTHING`
	for _, pkg := range packageNames {
		if _, err := p.tx.Exec(ctx, ins, p.family.FamilyID, categoryID, pkg); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("category %s: %w", categoryID, errs.ErrConflict)
			}
			return err
		}
	}
	return nil
}

func (p *pushTx) UpsertTimeLimitRule(ctx context.Context, rule model.TimeLimitRule) error {
	const q = `
INSERT INTO time_limit_rules (family_id, rule_id, category_id, apply_to_extra_time, day_mask, max_time_millis)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (family_id, rule_id) DO UPDATE
SET category_id=EXCLUDED.category_id, apply_to_extra_time=EXCLUDED.apply_to_extra_time,
    day_mask=EXCLUDED.day_mask, max_time_millis=EXCLUDED.max_time_millis`
	_, err := p.tx.Exec(ctx, q, p.family.FamilyID, rule.RuleID, rule.CategoryID,
		rule.ApplyToExtraTime, rule.DayMask, rule.MaxTimeMillis)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("category %s: %w", rule.CategoryID, errs.ErrConflict)
	}
	return err
}

func (p *pushTx) AddUsedTime(ctx context.Context, categoryID string, dayOfEpoch int32, millis int64) error {
	const q = `
INSERT INTO category_used_times (family_id, category_id, day_of_epoch, used_millis)
VALUES ($1,$2,$3,$4)
ON CONFLICT (family_id, category_id, day_of_epoch) DO UPDATE
SET used_millis = category_used_times.used_millis + EXCLUDED.used_millis`
	_, err := p.tx.Exec(ctx, q, p.family.FamilyID, categoryID, dayOfEpoch, millis)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("category %s: %w", categoryID, errs.ErrConflict)
	}
	return err
}

func (p *pushTx) SetDeviceUser(ctx context.Context, deviceID, userID string) error {
	if userID != "" {
		if _, err := p.FindUser(ctx, userID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return fmt.Errorf("user %s: %w", userID, errs.ErrConflict)
			}
			return err
		}
	}
	const q = `UPDATE devices SET current_user_id=$3 WHERE family_id=$1 AND device_id=$2`
	return p.execExpectingTarget(ctx, q, "device "+deviceID, p.family.FamilyID, deviceID, userID)
}

func (p *pushTx) SetInstalledApps(ctx context.Context, deviceID string, apps []model.InstalledApp) error {
	const del = `DELETE FROM installed_apps WHERE family_id=$1 AND device_id=$2`
	if _, err := p.tx.Exec(ctx, del, p.family.FamilyID, deviceID); err != nil {
		return err
	}
	const ins = `INSERT INTO installed_apps (family_id, device_id, package_name, title) VALUES ($1,$2,$3,$4)
ON CONFLICT DO NOTHING`
	for _, a := range apps {
		if _, err := p.tx.Exec(ctx, ins, p.family.FamilyID, deviceID, a.PackageName, a.Title); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("device %s: %w", deviceID, errs.ErrConflict)
			}
			return err
		}
	}
	return nil
}

func (p *pushTx) SetNextSequenceNumber(ctx context.Context, n int64) error {
	const q = `UPDATE devices SET next_sequence_number=$3 WHERE family_id=$1 AND device_id=$2`
	return p.execExpectingTarget(ctx, q, "device "+p.device.DeviceID, p.family.FamilyID, p.device.DeviceID, n)
}

func (p *pushTx) SetDeviceListVersion(ctx context.Context, token string) error {
	const q = `UPDATE families SET device_list_version=$2 WHERE family_id=$1`
	_, err := p.tx.Exec(ctx, q, p.family.FamilyID, token)
	return err
}

func (p *pushTx) SetUserListVersion(ctx context.Context, token string) error {
	const q = `UPDATE families SET user_list_version=$2 WHERE family_id=$1`
	_, err := p.tx.Exec(ctx, q, p.family.FamilyID, token)
	return err
}

func (p *pushTx) SetInstalledAppsVersion(ctx context.Context, deviceID, token string) error {
	const q = `UPDATE devices SET installed_apps_version=$3 WHERE family_id=$1 AND device_id=$2`
	return p.execExpectingTarget(ctx, q, "device "+deviceID, p.family.FamilyID, deviceID, token)
}

func (p *pushTx) SetCategoryVersions(ctx context.Context, categoryID string, tokens repository.CategoryVersionTokens) error {
	const q = `
UPDATE categories SET
  base_version       = CASE WHEN $3 <> '' THEN $3 ELSE base_version END,
  apps_version       = CASE WHEN $4 <> '' THEN $4 ELSE apps_version END,
  used_times_version = CASE WHEN $5 <> '' THEN $5 ELSE used_times_version END,
  rules_version      = CASE WHEN $6 <> '' THEN $6 ELSE rules_version END
WHERE family_id=$1 AND category_id=$2`
	return p.execExpectingTarget(ctx, q, "category "+categoryID,
		p.family.FamilyID, categoryID, tokens.Base, tokens.Apps, tokens.UsedTimes, tokens.Rules)
}

func (p *pushTx) BumpFullVersion(ctx context.Context) error {
	const q = `UPDATE families SET full_version = full_version + 1 WHERE family_id=$1`
	_, err := p.tx.Exec(ctx, q, p.family.FamilyID)
	return err
}

// execExpectingTarget runs an update that must hit at least one row; zero rows
// means the targeted entity does not exist in this family.
func (p *pushTx) execExpectingTarget(ctx context.Context, q, target string, args ...any) error {
	tag, err := p.tx.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", target, errs.ErrConflict)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.FamilyID, &u.UserID, &u.Name, &u.Type, &u.SecondPasswordHash,
		&u.SecondPasswordSalt, &u.TimeZone, &u.RelaxPrimaryDevice, &u.BlockedTimes,
		&u.DisableLimitsUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
