// Package action defines the closed set of mutation actions devices may push,
// their construction-time validation, and the tagged JSON wire codec.
package action

import (
	"fmt"
	"regexp"

	"github.com/famsync/famsync/internal/errs"
)

// Role says which actor category may issue an action variant.
type Role int

const (
	// RoleParent actions change policy and require an authenticated parent.
	RoleParent Role = iota + 1
	// RoleAppLogic actions are produced by the device software itself.
	RoleAppLogic
)

// Action is one immutable, validated mutation instruction. The set of
// implementations is closed; the push pipeline dispatches over it with an
// exhaustive type switch.
type Action interface {
	// Type returns the wire type tag.
	Type() string
	// Role returns the actor category required to issue this action.
	Role() Role

	sealed()
}

// Wire type tags.
const (
	TypeAddCategoryNetworkID       = "ADD_CATEGORY_NETWORK_ID"
	TypeResetParentBlockedTimes    = "RESET_PARENT_BLOCKED_TIMES"
	TypeSetRelaxPrimaryDevice      = "SET_RELAX_PRIMARY_DEVICE"
	TypeUpdateCategoryTimeWarnings = "UPDATE_CATEGORY_TIME_WARNINGS"
	TypeUpdateCategoryTitle        = "UPDATE_CATEGORY_TITLE"
	TypeSetCategoryExtraTime       = "SET_CATEGORY_EXTRA_TIME"
	TypeDeleteCategory             = "DELETE_CATEGORY"
	TypeUpdateCategoryAssignedApps = "UPDATE_CATEGORY_ASSIGNED_APPS"
	TypeUpdateTimeLimitRule        = "UPDATE_TIME_LIMIT_RULE"
	TypeAddUsedTime                = "ADD_USED_TIME"
	TypeSetDeviceUser              = "SET_DEVICE_USER"
	TypeUpdateInstalledApps        = "UPDATE_INSTALLED_APPS"
)

// AllowedTimeWarningFlags is the full set of supported time warning bits.
const AllowedTimeWarningFlags int32 = (1 << 5) - 1

// HashedNetworkIDLength is the length of anonymized network id hashes.
const HashedNetworkIDLength = 8

const (
	maxTitleLength      = 50
	maxAssignedApps     = 500
	maxInstalledApps    = 2000
	maxPackageNameLen   = 256
	maxUsedTimeToAddMs  = 24 * 60 * 60 * 1000
	maxDayMaskExclusive = 1 << 7
)

var idWithinFamilyPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,8}$`)
var hexPattern = regexp.MustCompile(`^[a-f0-9]+$`)

func assertIDWithinFamily(field, id string) error {
	if !idWithinFamilyPattern.MatchString(id) {
		return fmt.Errorf("%w: %s is not an id within a family", errs.ErrMalformedAction, field)
	}
	return nil
}

func assertHexString(field, v string) error {
	if !hexPattern.MatchString(v) {
		return fmt.Errorf("%w: %s is not a hex string", errs.ErrMalformedAction, field)
	}
	return nil
}
