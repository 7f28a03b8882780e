// Package service contains the push pipeline, the pull/diff engine and parent
// authentication.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/famsync/famsync/internal/action"
	pkgcrypto "github.com/famsync/famsync/internal/crypto"
	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
	"github.com/famsync/famsync/internal/sequence"
)

// Notifier wakes the other live connections of a family after a committed push.
type Notifier interface {
	NotifyFamily(familyID, sourceDeviceID string, important bool)
}

// SyncService implements the push pipeline and the pull/diff engine.
type SyncService struct {
	store    repository.Store
	guard    *sequence.Guard
	notifier Notifier
	newToken func() (string, error)
	maxBatch int
	message  string
	log      *zap.Logger
}

// NewSyncService constructs the sync service. message is an optional operator
// notice included in every pull response.
func NewSyncService(store repository.Store, guard *sequence.Guard, notifier Notifier, log *zap.Logger, maxBatch int, message string) *SyncService {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	return &SyncService{
		store:    store,
		guard:    guard,
		notifier: notifier,
		newToken: pkgcrypto.NewVersionToken,
		maxBatch: maxBatch,
		message:  message,
		log:      log,
	}
}

// Push applies a batch of action envelopes for the device identified by its
// auth token. All admission checks, mutations, version token bumps and the
// sequence number advance commit atomically; any failure rolls the whole
// batch back. Other devices of the family are notified only after commit.
func (s *SyncService) Push(ctx context.Context, deviceAuthToken string, batch []model.ActionEnvelope) (int, error) {
	if deviceAuthToken == "" {
		return 0, errs.ErrUnauthorized
	}
	if len(batch) > s.maxBatch {
		return 0, fmt.Errorf("%w: batch too large (%d > %d)", errs.ErrMalformedAction, len(batch), s.maxBatch)
	}

	var (
		familyID       string
		sourceDeviceID string
		important      bool
	)
	err := s.store.RunPushTx(ctx, deviceAuthToken, func(ctx context.Context, tx repository.PushTx) error {
		device := tx.Device()
		familyID, sourceDeviceID = device.FamilyID, device.DeviceID

		next, err := s.guard.Admit(device.NextSequenceNumber, device.AuthToken, batch)
		if err != nil {
			return err
		}

		// decode everything up front so a malformed envelope can never leave
		// earlier envelopes half applied
		actions := make([]action.Action, len(batch))
		for i, env := range batch {
			act, err := action.Decode([]byte(env.EncodedAction))
			if err != nil {
				return fmt.Errorf("envelope[%d]: %w", i, err)
			}
			if err := checkActor(ctx, tx, env, act); err != nil {
				return fmt.Errorf("envelope[%d]: %w", i, err)
			}
			actions[i] = act
		}

		cs := newChangeSet()
		for i, act := range actions {
			if err := applyAction(ctx, tx, device, act, cs); err != nil {
				return fmt.Errorf("envelope[%d]: %w", i, err)
			}
		}

		if err := s.bumpVersions(ctx, tx, cs); err != nil {
			return err
		}
		if next != device.NextSequenceNumber {
			if err := tx.SetNextSequenceNumber(ctx, next); err != nil {
				return err
			}
		}
		important = cs.important
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(batch) > 0 {
		s.notifier.NotifyFamily(familyID, sourceDeviceID, important)
		s.log.Info("push applied",
			zap.String("familyId", familyID),
			zap.String("deviceId", sourceDeviceID),
			zap.Int("actions", len(batch)),
		)
	}
	return len(batch), nil
}

// Identify resolves a device auth token to the family and device behind it.
// Used by the websocket endpoint before subscribing a connection.
func (s *SyncService) Identify(ctx context.Context, deviceAuthToken string) (familyID, deviceID string, err error) {
	if deviceAuthToken == "" {
		return "", "", errs.ErrUnauthorized
	}
	err = s.store.RunPullTx(ctx, deviceAuthToken, func(ctx context.Context, tx repository.PullTx) error {
		device := tx.Device()
		familyID, deviceID = device.FamilyID, device.DeviceID
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return familyID, deviceID, nil
}

// checkActor verifies the envelope's actor category against the action's
// required role. Parent actions additionally require the envelope user to be
// a parent of the device's family.
func checkActor(ctx context.Context, tx repository.PushTx, env model.ActionEnvelope, act action.Action) error {
	if !env.Type.Valid() {
		return fmt.Errorf("%w: unknown actor category %q", errs.ErrMalformedAction, env.Type)
	}
	switch act.Role() {
	case action.RoleParent:
		if env.Type != model.ActorParent {
			return fmt.Errorf("%w: %s requires a parent actor", errs.ErrMalformedAction, act.Type())
		}
		user, err := tx.FindUser(ctx, env.UserID)
		if err != nil {
			return fmt.Errorf("parent %q: %w", env.UserID, errs.ErrUnauthorized)
		}
		if user.Type != model.UserTypeParent {
			return fmt.Errorf("user %q is no parent: %w", env.UserID, errs.ErrUnauthorized)
		}
	case action.RoleAppLogic:
		if env.Type != model.ActorAppLogic {
			return fmt.Errorf("%w: %s requires the appLogic actor", errs.ErrMalformedAction, act.Type())
		}
	}
	return nil
}

// bumpVersions issues one fresh token per touched resource group.
func (s *SyncService) bumpVersions(ctx context.Context, tx repository.PushTx, cs *changeSet) error {
	if cs.deviceList {
		token, err := s.newToken()
		if err != nil {
			return err
		}
		if err := tx.SetDeviceListVersion(ctx, token); err != nil {
			return err
		}
	}
	if cs.userList {
		token, err := s.newToken()
		if err != nil {
			return err
		}
		if err := tx.SetUserListVersion(ctx, token); err != nil {
			return err
		}
	}
	for deviceID := range cs.installedApps {
		token, err := s.newToken()
		if err != nil {
			return err
		}
		if err := tx.SetInstalledAppsVersion(ctx, deviceID, token); err != nil {
			return err
		}
	}
	for categoryID, groups := range cs.categories {
		tokens, err := s.categoryTokens(groups)
		if err != nil {
			return err
		}
		if err := tx.SetCategoryVersions(ctx, categoryID, tokens); err != nil {
			return err
		}
	}
	if cs.full {
		if err := tx.BumpFullVersion(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) categoryTokens(groups *categoryGroups) (repository.CategoryVersionTokens, error) {
	var tokens repository.CategoryVersionTokens
	var err error
	fresh := func() string {
		if err != nil {
			return ""
		}
		var t string
		t, err = s.newToken()
		return t
	}
	if groups.base {
		tokens.Base = fresh()
	}
	if groups.apps {
		tokens.Apps = fresh()
	}
	if groups.usedTimes {
		tokens.UsedTimes = fresh()
	}
	if groups.rules {
		tokens.Rules = fresh()
	}
	return tokens, err
}
