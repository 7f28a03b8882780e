package action

import (
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
)

// AddCategoryNetworkID assigns an anonymized network id to a category.
type AddCategoryNetworkID struct {
	CategoryID      string `json:"categoryId"`
	ItemID          string `json:"itemId"`
	HashedNetworkID string `json:"hashedNetworkId"`
}

// NewAddCategoryNetworkID validates and constructs the action.
func NewAddCategoryNetworkID(categoryID, itemID, hashedNetworkID string) (AddCategoryNetworkID, error) {
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return AddCategoryNetworkID{}, err
	}
	if err := assertIDWithinFamily("itemId", itemID); err != nil {
		return AddCategoryNetworkID{}, err
	}
	if err := assertHexString("hashedNetworkId", hashedNetworkID); err != nil {
		return AddCategoryNetworkID{}, err
	}
	if len(hashedNetworkID) != HashedNetworkIDLength {
		return AddCategoryNetworkID{}, fmt.Errorf("%w: wrong network id length", errs.ErrMalformedAction)
	}
	return AddCategoryNetworkID{CategoryID: categoryID, ItemID: itemID, HashedNetworkID: hashedNetworkID}, nil
}

func (AddCategoryNetworkID) Type() string { return TypeAddCategoryNetworkID }
func (AddCategoryNetworkID) Role() Role   { return RoleParent }
func (AddCategoryNetworkID) sealed()      {}

// ResetParentBlockedTimes clears the limit-login times of a parent.
type ResetParentBlockedTimes struct {
	ParentID string `json:"parentId"`
}

// NewResetParentBlockedTimes validates and constructs the action.
func NewResetParentBlockedTimes(parentID string) (ResetParentBlockedTimes, error) {
	if err := assertIDWithinFamily("parentId", parentID); err != nil {
		return ResetParentBlockedTimes{}, err
	}
	return ResetParentBlockedTimes{ParentID: parentID}, nil
}

func (ResetParentBlockedTimes) Type() string { return TypeResetParentBlockedTimes }
func (ResetParentBlockedTimes) Role() Role   { return RoleParent }
func (ResetParentBlockedTimes) sealed()      {}

// SetRelaxPrimaryDevice toggles the relaxed primary device requirement of a user.
type SetRelaxPrimaryDevice struct {
	UserID string `json:"userId"`
	Relax  bool   `json:"relax"`
}

// NewSetRelaxPrimaryDevice validates and constructs the action.
func NewSetRelaxPrimaryDevice(userID string, relax bool) (SetRelaxPrimaryDevice, error) {
	if err := assertIDWithinFamily("userId", userID); err != nil {
		return SetRelaxPrimaryDevice{}, err
	}
	return SetRelaxPrimaryDevice{UserID: userID, Relax: relax}, nil
}

func (SetRelaxPrimaryDevice) Type() string { return TypeSetRelaxPrimaryDevice }
func (SetRelaxPrimaryDevice) Role() Role   { return RoleParent }
func (SetRelaxPrimaryDevice) sealed()      {}

// UpdateCategoryTimeWarnings enables or disables time warning flags of a category.
type UpdateCategoryTimeWarnings struct {
	CategoryID string `json:"categoryId"`
	Enable     bool   `json:"enable"`
	Flags      int32  `json:"flags"`
}

// NewUpdateCategoryTimeWarnings validates and constructs the action. Flags
// outside the allowed bitmask fail here, never later during apply.
func NewUpdateCategoryTimeWarnings(categoryID string, enable bool, flags int32) (UpdateCategoryTimeWarnings, error) {
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return UpdateCategoryTimeWarnings{}, err
	}
	if flags&AllowedTimeWarningFlags != flags {
		return UpdateCategoryTimeWarnings{}, fmt.Errorf("%w: illegal time warning flags", errs.ErrMalformedAction)
	}
	return UpdateCategoryTimeWarnings{CategoryID: categoryID, Enable: enable, Flags: flags}, nil
}

func (UpdateCategoryTimeWarnings) Type() string { return TypeUpdateCategoryTimeWarnings }
func (UpdateCategoryTimeWarnings) Role() Role   { return RoleParent }
func (UpdateCategoryTimeWarnings) sealed()      {}

// UpdateCategoryTitle renames a category.
type UpdateCategoryTitle struct {
	CategoryID string `json:"categoryId"`
	NewTitle   string `json:"newTitle"`
}

// NewUpdateCategoryTitle validates and constructs the action.
func NewUpdateCategoryTitle(categoryID, newTitle string) (UpdateCategoryTitle, error) {
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return UpdateCategoryTitle{}, err
	}
	if newTitle == "" || len(newTitle) > maxTitleLength {
		return UpdateCategoryTitle{}, fmt.Errorf("%w: illegal title length", errs.ErrMalformedAction)
	}
	return UpdateCategoryTitle{CategoryID: categoryID, NewTitle: newTitle}, nil
}

func (UpdateCategoryTitle) Type() string { return TypeUpdateCategoryTitle }
func (UpdateCategoryTitle) Role() Role   { return RoleParent }
func (UpdateCategoryTitle) sealed()      {}

// SetCategoryExtraTime grants bonus time to a category.
type SetCategoryExtraTime struct {
	CategoryID   string `json:"categoryId"`
	NewExtraTime int64  `json:"newExtraTime"`
}

// NewSetCategoryExtraTime validates and constructs the action.
func NewSetCategoryExtraTime(categoryID string, newExtraTime int64) (SetCategoryExtraTime, error) {
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return SetCategoryExtraTime{}, err
	}
	if newExtraTime < 0 {
		return SetCategoryExtraTime{}, fmt.Errorf("%w: negative extra time", errs.ErrMalformedAction)
	}
	return SetCategoryExtraTime{CategoryID: categoryID, NewExtraTime: newExtraTime}, nil
}

func (SetCategoryExtraTime) Type() string { return TypeSetCategoryExtraTime }
func (SetCategoryExtraTime) Role() Role   { return RoleParent }
func (SetCategoryExtraTime) sealed()      {}

// DeleteCategory removes a category and everything assigned to it. This is the
// one structural change that bumps the family's full version.
type DeleteCategory struct {
	CategoryID string `json:"categoryId"`
}

// NewDeleteCategory validates and constructs the action.
func NewDeleteCategory(categoryID string) (DeleteCategory, error) {
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return DeleteCategory{}, err
	}
	return DeleteCategory{CategoryID: categoryID}, nil
}

func (DeleteCategory) Type() string { return TypeDeleteCategory }
func (DeleteCategory) Role() Role   { return RoleParent }
func (DeleteCategory) sealed()      {}

// UpdateCategoryAssignedApps replaces the app assignment of a category.
type UpdateCategoryAssignedApps struct {
	CategoryID   string   `json:"categoryId"`
	PackageNames []string `json:"packageNames"`
}

// NewUpdateCategoryAssignedApps validates and constructs the action.
func NewUpdateCategoryAssignedApps(categoryID string, packageNames []string) (UpdateCategoryAssignedApps, error) {
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return UpdateCategoryAssignedApps{}, err
	}
	if len(packageNames) > maxAssignedApps {
		return UpdateCategoryAssignedApps{}, fmt.Errorf("%w: too many assigned apps", errs.ErrMalformedAction)
	}
	for _, p := range packageNames {
		if p == "" || len(p) > maxPackageNameLen {
			return UpdateCategoryAssignedApps{}, fmt.Errorf("%w: illegal package name", errs.ErrMalformedAction)
		}
	}
	return UpdateCategoryAssignedApps{CategoryID: categoryID, PackageNames: packageNames}, nil
}

func (UpdateCategoryAssignedApps) Type() string { return TypeUpdateCategoryAssignedApps }
func (UpdateCategoryAssignedApps) Role() Role   { return RoleParent }
func (UpdateCategoryAssignedApps) sealed()      {}

// UpdateTimeLimitRule creates or updates a time limit rule of a category.
type UpdateTimeLimitRule struct {
	RuleID           string `json:"ruleId"`
	CategoryID       string `json:"categoryId"`
	ApplyToExtraTime bool   `json:"applyToExtraTime"`
	DayMask          int32  `json:"dayMask"`
	MaxTimeMillis    int64  `json:"maxTimeMillis"`
}

// NewUpdateTimeLimitRule validates and constructs the action.
func NewUpdateTimeLimitRule(ruleID, categoryID string, applyToExtraTime bool, dayMask int32, maxTimeMillis int64) (UpdateTimeLimitRule, error) {
	if _, err := uuid.FromString(ruleID); err != nil {
		return UpdateTimeLimitRule{}, fmt.Errorf("%w: ruleId is not an uuid", errs.ErrMalformedAction)
	}
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return UpdateTimeLimitRule{}, err
	}
	if dayMask < 0 || dayMask >= maxDayMaskExclusive {
		return UpdateTimeLimitRule{}, fmt.Errorf("%w: illegal day mask", errs.ErrMalformedAction)
	}
	if maxTimeMillis < 0 {
		return UpdateTimeLimitRule{}, fmt.Errorf("%w: negative max time", errs.ErrMalformedAction)
	}
	return UpdateTimeLimitRule{
		RuleID:           ruleID,
		CategoryID:       categoryID,
		ApplyToExtraTime: applyToExtraTime,
		DayMask:          dayMask,
		MaxTimeMillis:    maxTimeMillis,
	}, nil
}

func (UpdateTimeLimitRule) Type() string { return TypeUpdateTimeLimitRule }
func (UpdateTimeLimitRule) Role() Role   { return RoleParent }
func (UpdateTimeLimitRule) sealed()      {}

// AddUsedTime reports screen time used by a category on one day.
type AddUsedTime struct {
	CategoryID string `json:"categoryId"`
	DayOfEpoch int32  `json:"day"`
	TimeToAdd  int64  `json:"timeToAdd"`
}

// NewAddUsedTime validates and constructs the action.
func NewAddUsedTime(categoryID string, dayOfEpoch int32, timeToAdd int64) (AddUsedTime, error) {
	if err := assertIDWithinFamily("categoryId", categoryID); err != nil {
		return AddUsedTime{}, err
	}
	if dayOfEpoch < 0 {
		return AddUsedTime{}, fmt.Errorf("%w: negative day", errs.ErrMalformedAction)
	}
	if timeToAdd <= 0 || timeToAdd > maxUsedTimeToAddMs {
		return AddUsedTime{}, fmt.Errorf("%w: illegal time to add", errs.ErrMalformedAction)
	}
	return AddUsedTime{CategoryID: categoryID, DayOfEpoch: dayOfEpoch, TimeToAdd: timeToAdd}, nil
}

func (AddUsedTime) Type() string { return TypeAddUsedTime }
func (AddUsedTime) Role() Role   { return RoleAppLogic }
func (AddUsedTime) sealed()      {}

// SetDeviceUser signs a user in or out at a device. An empty user id signs out.
type SetDeviceUser struct {
	DeviceID string `json:"deviceId"`
	UserID   string `json:"userId"`
}

// NewSetDeviceUser validates and constructs the action.
func NewSetDeviceUser(deviceID, userID string) (SetDeviceUser, error) {
	if err := assertIDWithinFamily("deviceId", deviceID); err != nil {
		return SetDeviceUser{}, err
	}
	if userID != "" {
		if err := assertIDWithinFamily("userId", userID); err != nil {
			return SetDeviceUser{}, err
		}
	}
	return SetDeviceUser{DeviceID: deviceID, UserID: userID}, nil
}

func (SetDeviceUser) Type() string { return TypeSetDeviceUser }
func (SetDeviceUser) Role() Role   { return RoleParent }
func (SetDeviceUser) sealed()      {}

// UpdateInstalledApps replaces the installed app list of the pushing device.
type UpdateInstalledApps struct {
	Apps []model.InstalledApp `json:"apps"`
}

// NewUpdateInstalledApps validates and constructs the action.
func NewUpdateInstalledApps(apps []model.InstalledApp) (UpdateInstalledApps, error) {
	if len(apps) > maxInstalledApps {
		return UpdateInstalledApps{}, fmt.Errorf("%w: too many installed apps", errs.ErrMalformedAction)
	}
	for _, a := range apps {
		if a.PackageName == "" || len(a.PackageName) > maxPackageNameLen {
			return UpdateInstalledApps{}, fmt.Errorf("%w: illegal package name", errs.ErrMalformedAction)
		}
		if len(a.Title) > maxPackageNameLen {
			return UpdateInstalledApps{}, fmt.Errorf("%w: illegal app title", errs.ErrMalformedAction)
		}
	}
	return UpdateInstalledApps{Apps: apps}, nil
}

func (UpdateInstalledApps) Type() string { return TypeUpdateInstalledApps }
func (UpdateInstalledApps) Role() Role   { return RoleAppLogic }
func (UpdateInstalledApps) sealed()      {}
