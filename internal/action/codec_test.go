package action

import (
	"errors"
	"strings"
	"testing"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
)

func TestEncodeDecode_Roundtrip(t *testing.T) {
	t.Parallel()

	cases := []Action{
		mustAction(t)(NewAddCategoryNetworkID("cat1", "item1", "0a1b2c3d")),
		mustAction(t)(NewResetParentBlockedTimes("parent1")),
		mustAction(t)(NewSetRelaxPrimaryDevice("child1", true)),
		mustAction(t)(NewUpdateCategoryTimeWarnings("cat1", true, 5)),
		mustAction(t)(NewUpdateCategoryTitle("cat1", "Games")),
		mustAction(t)(NewSetCategoryExtraTime("cat1", 600000)),
		mustAction(t)(NewDeleteCategory("cat1")),
		mustAction(t)(NewUpdateCategoryAssignedApps("cat1", []string{"com.example.game"})),
		mustAction(t)(NewUpdateTimeLimitRule("8b9f3a4e-1c2d-4e5f-8a9b-0c1d2e3f4a5b", "cat1", false, 0b0111110, 3600000)),
		mustAction(t)(NewAddUsedTime("cat1", 19500, 60000)),
		mustAction(t)(NewSetDeviceUser("dev1", "child1")),
		mustAction(t)(NewUpdateInstalledApps([]model.InstalledApp{{PackageName: "com.example.app", Title: "App"}})),
	}

	for _, a := range cases {
		wire, err := Encode(a)
		if err != nil {
			t.Fatalf("%s: Encode: %v", a.Type(), err)
		}
		if !strings.Contains(string(wire), `"type":"`+a.Type()+`"`) {
			t.Fatalf("%s: wire form misses type tag: %s", a.Type(), wire)
		}
		got, err := Decode(wire)
		if err != nil {
			t.Fatalf("%s: Decode: %v", a.Type(), err)
		}
		if got.Type() != a.Type() {
			t.Fatalf("roundtrip type: got %s, want %s", got.Type(), a.Type())
		}
	}
}

func mustAction(t *testing.T) func(a Action, err error) Action {
	t.Helper()
	return func(a Action, err error) Action {
		if err != nil {
			t.Fatalf("construct: %v", err)
		}
		return a
	}
}

func TestDecode_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"FORMAT_HARD_DISK"}`))
	if !errors.Is(err, errs.ErrUnknownActionType) {
		t.Fatalf("want ErrUnknownActionType, got %v", err)
	}
}

func TestDecode_NotJSON(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`not json`))
	if !errors.Is(err, errs.ErrMalformedAction) {
		t.Fatalf("want ErrMalformedAction, got %v", err)
	}
}

func TestDecode_RerunsValidation(t *testing.T) {
	t.Parallel()

	// a hand-crafted payload must pass the same invariants as the constructor
	cases := []string{
		`{"type":"UPDATE_CATEGORY_TIME_WARNINGS","categoryId":"cat1","enable":true,"flags":4096}`,
		`{"type":"UPDATE_CATEGORY_TITLE","categoryId":"cat1","newTitle":""}`,
		`{"type":"UPDATE_CATEGORY_TITLE","categoryId":"not a valid id!","newTitle":"x"}`,
		`{"type":"SET_CATEGORY_EXTRA_TIME","categoryId":"cat1","newExtraTime":-1}`,
		`{"type":"UPDATE_TIME_LIMIT_RULE","ruleId":"no-uuid","categoryId":"cat1","dayMask":1,"maxTimeMillis":1}`,
		`{"type":"UPDATE_TIME_LIMIT_RULE","ruleId":"8b9f3a4e-1c2d-4e5f-8a9b-0c1d2e3f4a5b","categoryId":"cat1","dayMask":128,"maxTimeMillis":1}`,
		`{"type":"ADD_USED_TIME","categoryId":"cat1","day":-1,"timeToAdd":1000}`,
		`{"type":"ADD_USED_TIME","categoryId":"cat1","day":1,"timeToAdd":0}`,
		`{"type":"ADD_CATEGORY_NETWORK_ID","categoryId":"cat1","itemId":"item1","hashedNetworkId":"zzzzzzzz"}`,
		`{"type":"ADD_CATEGORY_NETWORK_ID","categoryId":"cat1","itemId":"item1","hashedNetworkId":"0a1b"}`,
		`{"type":"UPDATE_CATEGORY_ASSIGNED_APPS","categoryId":"cat1","packageNames":[""]}`,
	}
	for _, wire := range cases {
		if _, err := Decode([]byte(wire)); !errors.Is(err, errs.ErrMalformedAction) {
			t.Fatalf("payload %s: want ErrMalformedAction, got %v", wire, err)
		}
	}
}

func TestDecode_EmptyUserSignsOut(t *testing.T) {
	t.Parallel()

	a, err := Decode([]byte(`{"type":"SET_DEVICE_USER","deviceId":"dev1","userId":""}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sdu, ok := a.(SetDeviceUser)
	if !ok {
		t.Fatalf("wrong variant %T", a)
	}
	if sdu.UserID != "" {
		t.Fatalf("userId should stay empty, got %q", sdu.UserID)
	}
}

func TestDecode_InstalledAppsNilBecomesEmpty(t *testing.T) {
	t.Parallel()

	a, err := Decode([]byte(`{"type":"UPDATE_INSTALLED_APPS"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	uia, ok := a.(UpdateInstalledApps)
	if !ok {
		t.Fatalf("wrong variant %T", a)
	}
	if uia.Apps == nil {
		t.Fatalf("apps must be an empty list, not nil")
	}
}

func TestRoles(t *testing.T) {
	t.Parallel()

	parentOnly := []Action{
		AddCategoryNetworkID{}, ResetParentBlockedTimes{}, SetRelaxPrimaryDevice{},
		UpdateCategoryTimeWarnings{}, UpdateCategoryTitle{}, SetCategoryExtraTime{},
		DeleteCategory{}, UpdateCategoryAssignedApps{}, UpdateTimeLimitRule{}, SetDeviceUser{},
	}
	for _, a := range parentOnly {
		if a.Role() != RoleParent {
			t.Fatalf("%s: want parent role", a.Type())
		}
	}
	if (AddUsedTime{}).Role() != RoleAppLogic {
		t.Fatalf("ADD_USED_TIME: want appLogic role")
	}
	if (UpdateInstalledApps{}).Role() != RoleAppLogic {
		t.Fatalf("UPDATE_INSTALLED_APPS: want appLogic role")
	}
}
