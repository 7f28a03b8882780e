package service

import (
	"context"
	"sort"

	"github.com/famsync/famsync/internal/errs"
	"github.com/famsync/famsync/internal/model"
	"github.com/famsync/famsync/internal/repository"
)

/************ in-memory store ************/

type fakeState struct {
	family        model.Family
	devices       map[string]*model.Device
	users         map[string]*model.User
	categories    map[string]*model.Category
	categoryApps  map[string][]string
	usedTimes     map[string]map[int32]int64
	rules         map[string]model.TimeLimitRule
	installedApps map[string][]model.InstalledApp
	networkIDs    map[string]map[string]string
}

func newFakeState() *fakeState {
	return &fakeState{
		family: model.Family{
			FamilyID:          "fam1",
			DeviceListVersion: "v-devices",
			UserListVersion:   "v-users",
			FullVersion:       3,
		},
		devices: map[string]*model.Device{
			"dev1": {
				FamilyID: "fam1", DeviceID: "dev1", Name: "Phone",
				AuthToken: "tok1", NextSequenceNumber: 0,
				InstalledAppsVersion: "v-apps1",
			},
			"dev2": {
				FamilyID: "fam1", DeviceID: "dev2", Name: "Tablet",
				AuthToken: "tok2", NextSequenceNumber: 0,
				InstalledAppsVersion: "v-apps2",
			},
		},
		users: map[string]*model.User{
			"parent1": {FamilyID: "fam1", UserID: "parent1", Name: "Mom", Type: model.UserTypeParent},
			"child1":  {FamilyID: "fam1", UserID: "child1", Name: "Kid", Type: model.UserTypeChild},
		},
		categories: map[string]*model.Category{
			"cat1": {
				FamilyID: "fam1", CategoryID: "cat1", ChildID: "child1", Title: "Games",
				BaseVersion: "v-base", AppsVersion: "v-capps",
				UsedTimesVersion: "v-times", RulesVersion: "v-rules",
			},
		},
		categoryApps:  map[string][]string{"cat1": {"com.example.game"}},
		usedTimes:     map[string]map[int32]int64{"cat1": {100: 60000}},
		rules:         map[string]model.TimeLimitRule{},
		installedApps: map[string][]model.InstalledApp{},
		networkIDs:    map[string]map[string]string{},
	}
}

func (st *fakeState) clone() *fakeState {
	c := &fakeState{
		family:        st.family,
		devices:       map[string]*model.Device{},
		users:         map[string]*model.User{},
		categories:    map[string]*model.Category{},
		categoryApps:  map[string][]string{},
		usedTimes:     map[string]map[int32]int64{},
		rules:         map[string]model.TimeLimitRule{},
		installedApps: map[string][]model.InstalledApp{},
		networkIDs:    map[string]map[string]string{},
	}
	for id, d := range st.devices {
		cp := *d
		c.devices[id] = &cp
	}
	for id, u := range st.users {
		cp := *u
		c.users[id] = &cp
	}
	for id, cat := range st.categories {
		cp := *cat
		c.categories[id] = &cp
	}
	for id, apps := range st.categoryApps {
		c.categoryApps[id] = append([]string(nil), apps...)
	}
	for id, days := range st.usedTimes {
		m := map[int32]int64{}
		for d, t := range days {
			m[d] = t
		}
		c.usedTimes[id] = m
	}
	for id, r := range st.rules {
		c.rules[id] = r
	}
	for id, apps := range st.installedApps {
		c.installedApps[id] = append([]model.InstalledApp(nil), apps...)
	}
	for id, items := range st.networkIDs {
		m := map[string]string{}
		for k, v := range items {
			m[k] = v
		}
		c.networkIDs[id] = m
	}
	return c
}

func (st *fakeState) deviceByToken(token string) *model.Device {
	for _, d := range st.devices {
		if d.AuthToken == token {
			return d
		}
	}
	return nil
}

type fakeStore struct {
	st *fakeState
}

var _ repository.Store = (*fakeStore)(nil)

// RunPushTx applies fn to a copy and swaps it in only on success, so a failed
// batch leaves the observable state untouched like a rolled-back transaction.
func (s *fakeStore) RunPushTx(ctx context.Context, token string, fn func(context.Context, repository.PushTx) error) error {
	dev := s.st.deviceByToken(token)
	if dev == nil {
		return errs.ErrUnauthorized
	}
	work := s.st.clone()
	tx := &fakeTx{st: work, device: work.devices[dev.DeviceID], family: &work.family}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *fakeStore) RunPullTx(ctx context.Context, token string, fn func(context.Context, repository.PullTx) error) error {
	dev := s.st.deviceByToken(token)
	if dev == nil {
		return errs.ErrUnauthorized
	}
	snapshot := s.st.clone()
	tx := &fakeTx{st: snapshot, device: snapshot.devices[dev.DeviceID], family: &snapshot.family}
	return fn(ctx, tx)
}

/************ transaction handle ************/

type fakeTx struct {
	st     *fakeState
	device *model.Device
	family *model.Family
}

var (
	_ repository.PushTx = (*fakeTx)(nil)
	_ repository.PullTx = (*fakeTx)(nil)
)

func (t *fakeTx) Device() *model.Device { return t.device }
func (t *fakeTx) Family() *model.Family { return t.family }

func (t *fakeTx) FindUser(_ context.Context, userID string) (*model.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *fakeTx) AddCategoryNetworkID(_ context.Context, categoryID, itemID, hashedNetworkID string) error {
	if _, ok := t.st.categories[categoryID]; !ok {
		return errs.ErrConflict
	}
	items := t.st.networkIDs[categoryID]
	if items == nil {
		items = map[string]string{}
		t.st.networkIDs[categoryID] = items
	}
	if _, exists := items[itemID]; exists {
		return errs.ErrConflict
	}
	items[itemID] = hashedNetworkID
	return nil
}

func (t *fakeTx) ResetParentBlockedTimes(_ context.Context, parentID string) error {
	u, ok := t.st.users[parentID]
	if !ok || u.Type != model.UserTypeParent {
		return errs.ErrConflict
	}
	u.BlockedTimes = ""
	return nil
}

func (t *fakeTx) SetRelaxPrimaryDevice(_ context.Context, userID string, relax bool) error {
	u, ok := t.st.users[userID]
	if !ok {
		return errs.ErrConflict
	}
	u.RelaxPrimaryDevice = relax
	return nil
}

func (t *fakeTx) UpdateCategoryTimeWarnings(_ context.Context, categoryID string, enable bool, flags int32) error {
	c, ok := t.st.categories[categoryID]
	if !ok {
		return errs.ErrConflict
	}
	if enable {
		c.TimeWarningFlags |= flags
	} else {
		c.TimeWarningFlags &^= flags
	}
	return nil
}

func (t *fakeTx) SetCategoryTitle(_ context.Context, categoryID, title string) error {
	c, ok := t.st.categories[categoryID]
	if !ok {
		return errs.ErrConflict
	}
	c.Title = title
	return nil
}

func (t *fakeTx) SetCategoryExtraTime(_ context.Context, categoryID string, extraTime int64) error {
	c, ok := t.st.categories[categoryID]
	if !ok {
		return errs.ErrConflict
	}
	c.ExtraTime = extraTime
	return nil
}

func (t *fakeTx) DeleteCategory(_ context.Context, categoryID string) error {
	if _, ok := t.st.categories[categoryID]; !ok {
		return errs.ErrConflict
	}
	delete(t.st.categories, categoryID)
	delete(t.st.categoryApps, categoryID)
	delete(t.st.usedTimes, categoryID)
	delete(t.st.networkIDs, categoryID)
	for id, r := range t.st.rules {
		if r.CategoryID == categoryID {
			delete(t.st.rules, id)
		}
	}
	return nil
}

func (t *fakeTx) SetCategoryApps(_ context.Context, categoryID string, packageNames []string) error {
	if _, ok := t.st.categories[categoryID]; !ok {
		return errs.ErrConflict
	}
	t.st.categoryApps[categoryID] = append([]string(nil), packageNames...)
	return nil
}

func (t *fakeTx) UpsertTimeLimitRule(_ context.Context, rule model.TimeLimitRule) error {
	if _, ok := t.st.categories[rule.CategoryID]; !ok {
		return errs.ErrConflict
	}
	t.st.rules[rule.RuleID] = rule
	return nil
}

func (t *fakeTx) AddUsedTime(_ context.Context, categoryID string, dayOfEpoch int32, millis int64) error {
	if _, ok := t.st.categories[categoryID]; !ok {
		return errs.ErrConflict
	}
	days := t.st.usedTimes[categoryID]
	if days == nil {
		days = map[int32]int64{}
		t.st.usedTimes[categoryID] = days
	}
	days[dayOfEpoch] += millis
	return nil
}

func (t *fakeTx) SetDeviceUser(_ context.Context, deviceID, userID string) error {
	d, ok := t.st.devices[deviceID]
	if !ok {
		return errs.ErrConflict
	}
	if userID != "" {
		if _, ok := t.st.users[userID]; !ok {
			return errs.ErrConflict
		}
	}
	d.CurrentUserID = userID
	return nil
}

func (t *fakeTx) SetInstalledApps(_ context.Context, deviceID string, apps []model.InstalledApp) error {
	if _, ok := t.st.devices[deviceID]; !ok {
		return errs.ErrConflict
	}
	t.st.installedApps[deviceID] = append([]model.InstalledApp(nil), apps...)
	return nil
}

func (t *fakeTx) SetNextSequenceNumber(_ context.Context, n int64) error {
	t.device.NextSequenceNumber = n
	t.st.devices[t.device.DeviceID].NextSequenceNumber = n
	return nil
}

func (t *fakeTx) SetDeviceListVersion(_ context.Context, token string) error {
	t.st.family.DeviceListVersion = token
	return nil
}

func (t *fakeTx) SetUserListVersion(_ context.Context, token string) error {
	t.st.family.UserListVersion = token
	return nil
}

func (t *fakeTx) SetInstalledAppsVersion(_ context.Context, deviceID, token string) error {
	d, ok := t.st.devices[deviceID]
	if !ok {
		return errs.ErrConflict
	}
	d.InstalledAppsVersion = token
	return nil
}

func (t *fakeTx) SetCategoryVersions(_ context.Context, categoryID string, tokens repository.CategoryVersionTokens) error {
	c, ok := t.st.categories[categoryID]
	if !ok {
		return errs.ErrConflict
	}
	if tokens.Base != "" {
		c.BaseVersion = tokens.Base
	}
	if tokens.Apps != "" {
		c.AppsVersion = tokens.Apps
	}
	if tokens.UsedTimes != "" {
		c.UsedTimesVersion = tokens.UsedTimes
	}
	if tokens.Rules != "" {
		c.RulesVersion = tokens.Rules
	}
	return nil
}

func (t *fakeTx) BumpFullVersion(_ context.Context) error {
	t.st.family.FullVersion++
	return nil
}

func (t *fakeTx) ListDevices(_ context.Context) ([]model.Device, error) {
	out := make([]model.Device, 0, len(t.st.devices))
	for _, d := range t.st.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (t *fakeTx) ListUsers(_ context.Context) ([]model.User, error) {
	out := make([]model.User, 0, len(t.st.users))
	for _, u := range t.st.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *fakeTx) ListCategories(_ context.Context) ([]model.Category, error) {
	out := make([]model.Category, 0, len(t.st.categories))
	for _, c := range t.st.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (t *fakeTx) CategoryApps(_ context.Context, categoryID string) ([]string, error) {
	return append([]string(nil), t.st.categoryApps[categoryID]...), nil
}

func (t *fakeTx) CategoryUsedTimes(_ context.Context, categoryID string) ([]model.UsedTimeItem, error) {
	var out []model.UsedTimeItem
	for day, millis := range t.st.usedTimes[categoryID] {
		out = append(out, model.UsedTimeItem{DayOfEpoch: day, UsedMillis: millis})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfEpoch < out[j].DayOfEpoch })
	return out, nil
}

func (t *fakeTx) CategoryRules(_ context.Context, categoryID string) ([]model.TimeLimitRule, error) {
	var out []model.TimeLimitRule
	for _, r := range t.st.rules {
		if r.CategoryID == categoryID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out, nil
}

func (t *fakeTx) InstalledApps(_ context.Context, deviceID string) ([]model.InstalledApp, error) {
	return append([]model.InstalledApp(nil), t.st.installedApps[deviceID]...), nil
}

/************ notifier ************/

type notifyCall struct {
	familyID  string
	deviceID  string
	important bool
}

type fakeNotifier struct {
	calls []notifyCall
}

func (n *fakeNotifier) NotifyFamily(familyID, sourceDeviceID string, important bool) {
	n.calls = append(n.calls, notifyCall{familyID: familyID, deviceID: sourceDeviceID, important: important})
}
