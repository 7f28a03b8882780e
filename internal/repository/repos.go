// Package repository defines storage interfaces implemented by concrete backends.
//
// Mutations never happen on implicit row handles: the push pipeline receives a
// PushTx bound to one family-scoped transaction with the device and family
// rows already locked, and every call site passes it explicitly.
package repository

import (
	"context"

	"github.com/famsync/famsync/internal/model"
)

// Store opens family-scoped transactions for the push and pull paths.
type Store interface {
	// RunPushTx resolves the device by auth token, locks its row and the
	// family row for update, runs fn and commits, or rolls everything back.
	RunPushTx(ctx context.Context, deviceAuthToken string, fn func(ctx context.Context, tx PushTx) error) error

	// RunPullTx resolves the device by auth token and runs fn inside one
	// read-only snapshot transaction.
	RunPullTx(ctx context.Context, deviceAuthToken string, fn func(ctx context.Context, tx PullTx) error) error
}

// CategoryVersionTokens carries fresh tokens for the per-category resource
// groups; an empty field leaves that group's token unchanged.
type CategoryVersionTokens struct {
	Base      string
	Apps      string
	UsedTimes string
	Rules     string
}

// PushTx is the write handle of one push transaction. All methods operate on
// the locked family; targets that do not exist yield errs.ErrConflict.
type PushTx interface {
	// Device returns the pushing device row as resolved at lock time.
	Device() *model.Device
	// Family returns the locked family row, including current version tokens.
	Family() *model.Family

	FindUser(ctx context.Context, userID string) (*model.User, error)

	AddCategoryNetworkID(ctx context.Context, categoryID, itemID, hashedNetworkID string) error
	ResetParentBlockedTimes(ctx context.Context, parentID string) error
	SetRelaxPrimaryDevice(ctx context.Context, userID string, relax bool) error
	UpdateCategoryTimeWarnings(ctx context.Context, categoryID string, enable bool, flags int32) error
	SetCategoryTitle(ctx context.Context, categoryID, title string) error
	SetCategoryExtraTime(ctx context.Context, categoryID string, extraTime int64) error
	DeleteCategory(ctx context.Context, categoryID string) error
	SetCategoryApps(ctx context.Context, categoryID string, packageNames []string) error
	UpsertTimeLimitRule(ctx context.Context, rule model.TimeLimitRule) error
	AddUsedTime(ctx context.Context, categoryID string, dayOfEpoch int32, millis int64) error
	SetDeviceUser(ctx context.Context, deviceID, userID string) error
	SetInstalledApps(ctx context.Context, deviceID string, apps []model.InstalledApp) error

	SetNextSequenceNumber(ctx context.Context, n int64) error
	SetDeviceListVersion(ctx context.Context, token string) error
	SetUserListVersion(ctx context.Context, token string) error
	SetInstalledAppsVersion(ctx context.Context, deviceID, token string) error
	SetCategoryVersions(ctx context.Context, categoryID string, tokens CategoryVersionTokens) error
	BumpFullVersion(ctx context.Context) error
}

// PullTx is the read handle of one pull transaction.
type PullTx interface {
	Device() *model.Device
	Family() *model.Family

	FindUser(ctx context.Context, userID string) (*model.User, error)
	ListDevices(ctx context.Context) ([]model.Device, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CategoryApps(ctx context.Context, categoryID string) ([]string, error)
	CategoryUsedTimes(ctx context.Context, categoryID string) ([]model.UsedTimeItem, error)
	CategoryRules(ctx context.Context, categoryID string) ([]model.TimeLimitRule, error)
	InstalledApps(ctx context.Context, deviceID string) ([]model.InstalledApp, error)
}
