package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
)

// Store implements repository.Store using PostgreSQL.
type Store struct{ db *DB }

// NewStore constructs a sync store.
func NewStore(db *DB) *Store { return &Store{db: db} }

var _ repository.Store = (*Store)(nil)

const selectDeviceForUpdate = `
SELECT family_id, device_id, name, model, added_at, current_user_id, auth_token,
       next_sequence_number, installed_apps_version, is_user_kept_signed_in
FROM devices WHERE auth_token=$1 FOR UPDATE`

const selectDevice = `
SELECT family_id, device_id, name, model, added_at, current_user_id, auth_token,
       next_sequence_number, installed_apps_version, is_user_kept_signed_in
FROM devices WHERE auth_token=$1`

const selectFamilyForUpdate = `
SELECT family_id, created_at, device_list_version, user_list_version, full_version
FROM families WHERE family_id=$1 FOR UPDATE`

const selectFamily = `
SELECT family_id, created_at, device_list_version, user_list_version, full_version
FROM families WHERE family_id=$1`

// RunPushTx opens one family-scoped write transaction: the device row is
// resolved by auth token and locked, then the family row is locked so that
// concurrent pushes for the same family serialize (pushes for other families
// proceed in parallel).
func (s *Store) RunPushTx(ctx context.Context, deviceAuthToken string, fn func(ctx context.Context, tx repository.PushTx) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	device, err := scanDevice(tx.QueryRow(ctx, selectDeviceForUpdate, deviceAuthToken))
	if err != nil {
		return err
	}
	family, err := scanFamily(tx.QueryRow(ctx, selectFamilyForUpdate, device.FamilyID))
	if err != nil {
		return err
	}
	return fn(ctx, &pushTx{tx: tx, device: device, family: family})
}

// RunPullTx opens one read-only repeatable-read transaction so a pull observes
// a single consistent snapshot, never a partially-applied push.
func (s *Store) RunPullTx(ctx context.Context, deviceAuthToken string, fn func(ctx context.Context, tx repository.PullTx) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	device, err := scanDevice(tx.QueryRow(ctx, selectDevice, deviceAuthToken))
	if err != nil {
		return err
	}
	family, err := scanFamily(tx.QueryRow(ctx, selectFamily, device.FamilyID))
	if err != nil {
		return err
	}
	return fn(ctx, &pullTx{tx: tx, device: device, family: family})
}

func scanDevice(row pgx.Row) (*model.Device, error) {
	var d model.Device
	err := row.Scan(&d.FamilyID, &d.DeviceID, &d.Name, &d.Model, &d.AddedAt,
		&d.CurrentUserID, &d.AuthToken, &d.NextSequenceNumber,
		&d.InstalledAppsVersion, &d.IsUserKeptSignedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	return &d, nil
}

func scanFamily(row pgx.Row) (*model.Family, error) {
	var f model.Family
	err := row.Scan(&f.FamilyID, &f.CreatedAt, &f.DeviceListVersion, &f.UserListVersion, &f.FullVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}
