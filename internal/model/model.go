// Package model defines domain entities used by services and repositories.
package model

import "time"

// Tokens collects an issued parent access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// ActorCategory says on whose behalf a pushed action was produced.
type ActorCategory string

const (
	ActorAppLogic ActorCategory = "appLogic"
	ActorParent   ActorCategory = "parent"
	ActorChild    ActorCategory = "child"
)

// Valid reports whether the actor category is one of the known values.
func (a ActorCategory) Valid() bool {
	return a == ActorAppLogic || a == ActorParent || a == ActorChild
}

// UserType distinguishes parent and child accounts.
type UserType string

const (
	UserTypeParent UserType = "parent"
	UserTypeChild  UserType = "child"
)

// Family is the tenant boundary. It carries the list-level version tokens and
// the family-wide full version epoch.
type Family struct {
	FamilyID          string
	CreatedAt         time.Time
	DeviceListVersion string
	UserListVersion   string
	FullVersion       int64
}

// Device belongs to exactly one family. NextSequenceNumber is the next action
// sequence number the authority will accept from it; only the push pipeline
// advances it, under the family write lock.
type Device struct {
	FamilyID             string
	DeviceID             string
	Name                 string
	Model                string
	AddedAt              int64
	CurrentUserID        string
	AuthToken            string
	NextSequenceNumber   int64
	InstalledAppsVersion string
	IsUserKeptSignedIn   bool
}

// User is a family member account.
type User struct {
	FamilyID             string
	UserID               string
	Name                 string
	Type                 UserType
	SecondPasswordHash   []byte
	SecondPasswordSalt   []byte
	TimeZone             string
	RelaxPrimaryDevice   bool
	BlockedTimes         string
	DisableLimitsUntil   int64
}

// Category is a screen-time policy group owned by one child user.
type Category struct {
	FamilyID             string
	CategoryID           string
	ChildID              string
	Title                string
	BlockedMinutesInWeek string
	ExtraTime            int64
	TempBlocked          bool
	TimeWarningFlags     int32
	BaseVersion          string
	AppsVersion          string
	UsedTimesVersion     string
	RulesVersion         string
}

// InstalledApp is one app reported by a device.
type InstalledApp struct {
	PackageName string `json:"packageName"`
	Title       string `json:"title"`
}

// UsedTimeItem is the tracked usage of one category on one day.
type UsedTimeItem struct {
	DayOfEpoch int32 `json:"day"`
	UsedMillis int64 `json:"time"`
}

// TimeLimitRule restricts a category on selected weekdays.
type TimeLimitRule struct {
	RuleID           string `json:"id"`
	CategoryID       string `json:"-"`
	ApplyToExtraTime bool   `json:"extraTime"`
	DayMask          int32  `json:"dayMask"`
	MaxTimeMillis    int64  `json:"maxTime"`
}

// ActionEnvelope is the wire unit around one encoded action. It is produced by
// a device and consumed exactly once by the push pipeline.
type ActionEnvelope struct {
	EncodedAction  string        `json:"encodedAction"`
	SequenceNumber int64         `json:"sequenceNumber"`
	Integrity      string        `json:"integrity"`
	Type           ActorCategory `json:"type"`
	UserID         string        `json:"userId"`
}

// CategoryDataStatus is the client's last-known version tokens for one category.
type CategoryDataStatus struct {
	Base      string `json:"base"`
	Apps      string `json:"apps"`
	UsedTimes string `json:"time"`
	Rules     string `json:"rules"`
}

// ClientDataStatus is a device's last-known version vector, compared by the
// pull engine to compute a sparse diff.
type ClientDataStatus struct {
	Devices     string                        `json:"devices,omitempty"`
	Apps        map[string]string             `json:"apps,omitempty"`
	Categories  map[string]CategoryDataStatus `json:"categories,omitempty"`
	Users       string                        `json:"users,omitempty"`
	FullVersion int64                         `json:"fullVersion"`
}

// ServerDataStatus is the pull response: only groups whose version token
// differs from the client's are populated, plus the current full version.
type ServerDataStatus struct {
	Devices      *ServerDeviceList           `json:"devices,omitempty"`
	Apps         []ServerInstalledApps       `json:"apps,omitempty"`
	RmCategories []string                    `json:"rmCategories,omitempty"`
	CategoryBase []ServerCategoryBase        `json:"categoryBase,omitempty"`
	CategoryApps []ServerCategoryApps        `json:"categoryApp,omitempty"`
	UsedTimes    []ServerCategoryUsedTimes   `json:"usedTimes,omitempty"`
	Rules        []ServerCategoryRules       `json:"rules,omitempty"`
	Users        *ServerUserList             `json:"users,omitempty"`
	FullVersion  int64                       `json:"fullVersion"`
	Message      string                      `json:"message,omitempty"`
}

// ServerDeviceList is the full device list with its version token.
type ServerDeviceList struct {
	Version string             `json:"version"`
	Data    []ServerDeviceData `json:"data"`
}

// ServerDeviceData is one device entry in the pull response.
type ServerDeviceData struct {
	DeviceID           string `json:"deviceId"`
	Name               string `json:"name"`
	Model              string `json:"model"`
	AddedAt            int64  `json:"addedAt"`
	CurrentUserID      string `json:"currentUserId"`
	IsUserKeptSignedIn bool   `json:"isUserKeptSignedIn"`
}

// ServerUserList is the full user list with its version token.
type ServerUserList struct {
	Version string            `json:"version"`
	Data    []ServerUserEntry `json:"data"`
}

// ServerUserEntry is one user entry in the pull response.
type ServerUserEntry struct {
	UserID             string   `json:"id"`
	Name               string   `json:"name"`
	Type               UserType `json:"type"`
	TimeZone           string   `json:"timeZone"`
	RelaxPrimaryDevice bool     `json:"relaxPrimaryDevice"`
	BlockedTimes       string   `json:"blockedTimes"`
	DisableLimitsUntil int64    `json:"disableLimitsUntil"`
}

// ServerCategoryBase carries the base attributes of one changed category.
type ServerCategoryBase struct {
	CategoryID           string `json:"categoryId"`
	ChildID              string `json:"childId"`
	Title                string `json:"title"`
	BlockedMinutesInWeek string `json:"blockedTimes"`
	ExtraTime            int64  `json:"extraTime"`
	TempBlocked          bool   `json:"tempBlocked"`
	TimeWarningFlags     int32  `json:"timeWarnings"`
	Version              string `json:"version"`
}

// ServerCategoryApps carries the assigned apps of one changed category.
type ServerCategoryApps struct {
	CategoryID string   `json:"categoryId"`
	Apps       []string `json:"apps"`
	Version    string   `json:"version"`
}

// ServerCategoryUsedTimes carries the used times of one changed category.
type ServerCategoryUsedTimes struct {
	CategoryID string         `json:"categoryId"`
	Times      []UsedTimeItem `json:"times"`
	Version    string         `json:"version"`
}

// ServerCategoryRules carries the time limit rules of one changed category.
type ServerCategoryRules struct {
	CategoryID string          `json:"categoryId"`
	Rules      []TimeLimitRule `json:"rules"`
	Version    string          `json:"version"`
}

// ServerInstalledApps carries the installed apps of one changed device.
type ServerInstalledApps struct {
	DeviceID string         `json:"deviceId"`
	Apps     []InstalledApp `json:"apps"`
	Version  string         `json:"version"`
}
