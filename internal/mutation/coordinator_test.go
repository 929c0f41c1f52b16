package mutation

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joshuadavidthomas/aikeys/internal/access"
	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/api/apitest"
	"github.com/joshuadavidthomas/aikeys/internal/credstore"
	"github.com/joshuadavidthomas/aikeys/internal/logging"
	"github.com/joshuadavidthomas/aikeys/internal/models"
)

type recorder struct {
	mu sync.Mutex
	ns []Notification
}

func (r *recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ns = append(r.ns, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.ns...)
}

func boolPtr(v bool) *bool { return &v }

type harness struct {
	c       *Coordinator
	fake    *apitest.Fake
	notes   *recorder
	metrics *Metrics
	ctx     context.Context
}

// newHarness seeds openai (shared API, id 1) with a personal key and
// anthropic (no shared API, id 2) without one.
func newHarness(t *testing.T, super, delegated bool) *harness {
	t.Helper()
	f := apitest.New()
	f.AddProvider(api.ProviderRecord{
		ID: 1, Name: "openai", IsActive: true,
		HasSharedAPI: boolPtr(true), AllowSharedForNormalAdmins: delegated, SharedAPIKey: "sk-org",
	})
	f.AddProvider(api.ProviderRecord{ID: 2, Name: "anthropic", IsActive: true})
	f.AddSetting(api.PersonalSettingRecord{ID: 50, ProviderName: "openai", PersonalAPIKeyValue: "sk-mine", IsActive: true})

	notes := &recorder{}
	metrics := NewMetrics()
	viewer := access.StaticViewer{Super: super, Permissions: []string{access.ManagePermission}}
	c := New(f, credstore.New(), viewer, Config{Notifier: notes, Metrics: metrics})

	ctx, _ := logging.NewTestContext(logging.Flags{})
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return &harness{c: c, fake: f, notes: notes, metrics: metrics, ctx: ctx}
}

func (h *harness) state(t *testing.T, providerID string) models.EffectiveAccessState {
	t.Helper()
	desc, ok := h.c.Store().Descriptor(providerID)
	if !ok {
		t.Fatalf("no descriptor for %s", providerID)
	}
	return access.ResolveCredential(desc, h.c.Store().Credential(providerID), h.c.superAdmin())
}

func waitIdle(t *testing.T, c *Coordinator, key credstore.Key) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Pending(key) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("%s still has %d pending writes", key, c.Pending(key))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSaveKey_PersonalRouting(t *testing.T) {
	h := newHarness(t, false, false)

	if err := h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, "sk-new"); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	calls := h.fake.CallsFor(apitest.OpSavePersonal)
	if len(calls) != 1 {
		t.Fatalf("SavePersonalSetting calls = %d, want 1", len(calls))
	}
	p := calls[0].Personal
	if p.ID == nil || *p.ID != 50 {
		t.Errorf("payload id = %v, want 50", p.ID)
	}
	if p.APIKey == nil || *p.APIKey != "sk-new" {
		t.Errorf("payload api_key = %v", p.APIKey)
	}
	if p.UseSharedAPI {
		t.Error("personal save should not set use_shared_api")
	}
	if len(h.fake.CallsFor(apitest.OpSaveShared)) != 0 {
		t.Error("personal save must not touch the shared record")
	}
	if l, _ := h.c.Store().LocalKey(credstore.PersonalKey("openai")); l.Value != "sk-new" {
		t.Errorf("local key = %q, want sk-new", l.Value)
	}
	// Post-success refetch.
	if got := len(h.fake.CallsFor(apitest.OpListProviders)); got != 2 {
		t.Errorf("ListProviders calls = %d, want 2", got)
	}
}

func TestSaveKey_SharedScopeSuperAdmin(t *testing.T) {
	h := newHarness(t, true, false)

	if err := h.c.SaveKey(h.ctx, "openai", models.ScopeShared, "sk-org-2"); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	calls := h.fake.CallsFor(apitest.OpSaveShared)
	if len(calls) != 1 {
		t.Fatalf("SaveSharedKey calls = %d, want 1", len(calls))
	}
	if calls[0].ID == nil || *calls[0].ID != 1 {
		t.Errorf("shared save should patch provider 1, got %v", calls[0].ID)
	}
	if got := calls[0].Shared.SharedAPIKey; got == nil || *got != "sk-org-2" {
		t.Errorf("shared_api_key = %v", got)
	}
	if len(h.fake.CallsFor(apitest.OpSavePersonal)) != 0 {
		t.Error("shared save by a super admin must not write personal settings")
	}
	if p, _ := h.fake.Provider(1); p.SharedAPIKey != "sk-org-2" {
		t.Errorf("stored shared key = %q", p.SharedAPIKey)
	}
}

func TestSaveKey_SharedScopeNormalAdminWritesPersonal(t *testing.T) {
	h := newHarness(t, false, true)

	if err := h.c.SaveKey(h.ctx, "openai", models.ScopeShared, "sk-x"); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	calls := h.fake.CallsFor(apitest.OpSavePersonal)
	if len(calls) != 1 || !calls[0].Personal.UseSharedAPI {
		t.Fatalf("want one personal save with use_shared_api, got %+v", calls)
	}
	if len(h.fake.CallsFor(apitest.OpSaveShared)) != 0 {
		t.Error("normal admin must never write the shared record")
	}
	if key := h.c.WriteKey("openai", models.ScopeShared); key != credstore.PersonalKey("openai") {
		t.Errorf("WriteKey = %s, want personal", key)
	}
}

func TestSaveKey_EmptyValueClears(t *testing.T) {
	h := newHarness(t, false, false)

	if err := h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, ""); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	p := h.fake.CallsFor(apitest.OpSavePersonal)[0].Personal
	if p.APIKey == nil || *p.APIKey != "" {
		t.Errorf("clear must send an explicit empty api_key, got %v", p.APIKey)
	}

	st := h.state(t, "openai")
	if st.EffectiveKeyPresent {
		t.Error("key should read as absent after clearing")
	}
	rec, ok := h.c.Store().Personal("openai")
	if !ok || rec.ID == nil || *rec.ID != 50 {
		t.Errorf("clearing must keep the record id, got %+v", rec)
	}
}

func TestSaveKey_SentinelLeavesStoredKey(t *testing.T) {
	h := newHarness(t, false, false)

	if err := h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, models.MaskSentinel); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	if p := h.fake.CallsFor(apitest.OpSavePersonal)[0].Personal; p.APIKey != nil {
		t.Errorf("sentinel should omit api_key, got %q", *p.APIKey)
	}
	if s, _ := h.fake.Setting("openai"); s.PersonalAPIKeyValue != "sk-mine" {
		t.Errorf("stored key = %q, want sk-mine", s.PersonalAPIKeyValue)
	}
}

func TestSaveKey_CreatesPersonalRecord(t *testing.T) {
	h := newHarness(t, false, false)

	if err := h.c.SaveKey(h.ctx, "anthropic", models.ScopePersonal, "sk-ant"); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	p := h.fake.CallsFor(apitest.OpSavePersonal)[0].Personal
	if p.ID != nil {
		t.Errorf("new record should be posted without an id, got %d", *p.ID)
	}
	if !p.IsActive {
		t.Error("new record should default to active")
	}
	rec, ok := h.c.Store().Personal("anthropic")
	if !ok || rec.ID == nil {
		t.Fatal("refetch should pick up the created record id")
	}
	if got := h.state(t, "anthropic").AccessStatus; got != models.AccessPersonal {
		t.Errorf("AccessStatus = %q, want personal", got)
	}
}

func TestSaveKey_UnresolvableProvider(t *testing.T) {
	h := newHarness(t, false, false)
	before := len(h.fake.Calls())

	err := h.c.SaveKey(h.ctx, "not-a-provider", models.ScopePersonal, "x")
	if !errors.Is(err, ErrUnresolvableProvider) {
		t.Fatalf("err = %v, want ErrUnresolvableProvider", err)
	}
	if !IsLocal(err) {
		t.Error("unresolvable provider should be a local error")
	}
	if len(h.fake.Calls()) != before {
		t.Error("no request may be sent for an unresolvable provider")
	}
	notes := h.notes.all()
	if len(notes) != 1 || notes[0].Level != LevelError {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestSaveKey_RemoteRejectionLeavesLocalState(t *testing.T) {
	h := newHarness(t, false, false)
	h.fake.FailNext(apitest.OpSavePersonal, apitest.Reject(http.StatusBadRequest, "Invalid API key format."))

	err := h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, "bad")
	var re *api.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if err.Error() != "Invalid API key format." {
		t.Errorf("message = %q, want server text verbatim", err.Error())
	}
	if l, _ := h.c.Store().LocalKey(credstore.PersonalKey("openai")); l.Value != "sk-mine" {
		t.Errorf("failed save changed local key to %q", l.Value)
	}
	notes := h.notes.all()
	if len(notes) != 1 || notes[0].Message != "Invalid API key format." {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestSaveKey_RefreshFailureWarns(t *testing.T) {
	h := newHarness(t, false, false)
	h.fake.FailNext(apitest.OpListProviders, apitest.Reject(http.StatusServiceUnavailable, "Service unavailable."))

	if err := h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, "sk-new"); err != nil {
		t.Fatalf("a failed refetch must not fail the write: %v", err)
	}
	notes := h.notes.all()
	if len(notes) != 1 || notes[0].Level != LevelWarn {
		t.Fatalf("notifications = %+v, want one warning", notes)
	}
}

func TestDeletePersonal_Success(t *testing.T) {
	h := newHarness(t, false, false)

	if err := h.c.DeletePersonal(h.ctx, "openai"); err != nil {
		t.Fatalf("DeletePersonal: %v", err)
	}
	if l, _ := h.c.Store().LocalKey(credstore.PersonalKey("openai")); l.Value != "" {
		t.Errorf("local key = %q, want empty", l.Value)
	}
	if s, _ := h.fake.Setting("openai"); s.PersonalAPIKeyValue != "" || s.ID != 50 {
		t.Errorf("stored setting = %+v", s)
	}
	if got := h.state(t, "openai").AccessStatus; got != models.AccessNoKey {
		t.Errorf("AccessStatus = %q, want no-key", got)
	}
}

func TestDeletePersonal_RollbackOnFailure(t *testing.T) {
	h := newHarness(t, false, false)
	key := credstore.PersonalKey("openai")

	var atRequest string
	h.fake.Before = func(_ context.Context, op string) error {
		if op == apitest.OpSavePersonal {
			l, _ := h.c.Store().LocalKey(key)
			atRequest = l.Value
		}
		return nil
	}
	h.fake.FailNext(apitest.OpSavePersonal, apitest.Reject(http.StatusInternalServerError, "Database unavailable."))

	if err := h.c.DeletePersonal(h.ctx, "openai"); err == nil {
		t.Fatal("expected error")
	}
	if atRequest != "" {
		t.Errorf("local key should be cleared before the request settles, was %q", atRequest)
	}
	l, _ := h.c.Store().LocalKey(key)
	if l.Value != "sk-mine" {
		t.Errorf("local key after failure = %q, want sk-mine restored", l.Value)
	}
}

func TestDeleteShared_RequiresSuperAdmin(t *testing.T) {
	h := newHarness(t, false, true)

	err := h.c.DeleteShared(h.ctx, "openai")
	if !errors.Is(err, ErrSharedNotPermitted) {
		t.Fatalf("err = %v, want ErrSharedNotPermitted", err)
	}
	if len(h.fake.CallsFor(apitest.OpSavePersonal))+len(h.fake.CallsFor(apitest.OpSaveShared)) != 0 {
		t.Error("no write may be sent")
	}
}

func TestDeleteShared_SuperAdmin(t *testing.T) {
	h := newHarness(t, true, false)

	if err := h.c.DeleteShared(h.ctx, "openai"); err != nil {
		t.Fatalf("DeleteShared: %v", err)
	}
	got := h.fake.CallsFor(apitest.OpSaveShared)[0].Shared.SharedAPIKey
	if got == nil || *got != "" {
		t.Errorf("shared_api_key = %v, want explicit empty", got)
	}
	if p, _ := h.fake.Provider(1); p.SharedAPIKey != "" {
		t.Errorf("stored shared key = %q", p.SharedAPIKey)
	}
}

func TestToggleActive_SharedRequiresSuperAdmin(t *testing.T) {
	h := newHarness(t, false, true)

	err := h.c.ToggleActive(h.ctx, "openai", false, models.ScopeShared)
	if !errors.Is(err, ErrSharedNotPermitted) {
		t.Fatalf("err = %v, want ErrSharedNotPermitted", err)
	}
	if len(h.fake.CallsFor(apitest.OpToggleProvider))+len(h.fake.CallsFor(apitest.OpSavePersonal)) != 0 {
		t.Error("no write may be sent")
	}
	if p, _ := h.fake.Provider(1); !p.IsActive {
		t.Error("shared record must stay active")
	}
	notes := h.notes.all()
	if len(notes) != 1 || notes[0].Level != LevelError || notes[0].Op != OpToggleActive {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestDeletePersonal_RollbackKeepsEarlierSave(t *testing.T) {
	h := newHarness(t, false, false)
	key := credstore.PersonalKey("openai")
	started, release := blockFirst(h.fake, apitest.OpSavePersonal)

	saved := make(chan error, 1)
	go func() { saved <- h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, "sk-A") }()
	<-started
	deleted := make(chan error, 1)
	go func() { deleted <- h.c.DeletePersonal(h.ctx, "openai") }()
	for h.c.Pending(key) < 2 {
		time.Sleep(time.Millisecond)
	}
	h.fake.FailNext(apitest.OpSavePersonal, apitest.Reject(http.StatusInternalServerError, "Database unavailable."))
	close(release)

	if err := <-saved; err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	if err := <-deleted; err == nil {
		t.Fatal("expected the delete to fail")
	}
	if s, _ := h.fake.Setting("openai"); s.PersonalAPIKeyValue != "sk-A" {
		t.Fatalf("stored key = %q, want sk-A", s.PersonalAPIKeyValue)
	}
	if l, _ := h.c.Store().LocalKey(key); l.Value != "sk-A" {
		t.Errorf("local key = %q, want sk-A to match the server", l.Value)
	}
}

func TestDeletePersonal_SupersededRestoresKey(t *testing.T) {
	h := newHarness(t, false, false)
	key := credstore.PersonalKey("openai")
	started, release := blockFirst(h.fake, apitest.OpSavePersonal)

	toggled := make(chan error, 1)
	go func() { toggled <- h.c.ToggleActive(h.ctx, "openai", true, models.ScopePersonal) }()
	<-started
	deleted := make(chan error, 1)
	go func() { deleted <- h.c.DeletePersonal(h.ctx, "openai") }()
	for h.c.Pending(key) < 2 {
		time.Sleep(time.Millisecond)
	}
	if l, _ := h.c.Store().LocalKey(key); l.Value != "" {
		t.Fatalf("queued delete should clear the local key, got %q", l.Value)
	}

	h.fake.FailNext(apitest.OpSavePersonal, apitest.Reject(http.StatusBadRequest, "Invalid API key format."))
	saved := make(chan error, 1)
	go func() { saved <- h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, "sk-B") }()
	if err := <-deleted; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("delete = %v, want ErrSuperseded", err)
	}
	if l, _ := h.c.Store().LocalKey(key); l.Value != "sk-mine" {
		t.Errorf("superseded delete left local key %q, want sk-mine", l.Value)
	}
	close(release)

	if err := <-toggled; err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if err := <-saved; err == nil {
		t.Fatal("expected the save to fail")
	}
	if s, _ := h.fake.Setting("openai"); s.PersonalAPIKeyValue != "sk-mine" {
		t.Fatalf("stored key = %q, want sk-mine", s.PersonalAPIKeyValue)
	}
	if l, _ := h.c.Store().LocalKey(key); l.Value != "sk-mine" {
		t.Errorf("local key = %q, want sk-mine", l.Value)
	}
}

func TestToggleActive_SharedNeedsBackendID(t *testing.T) {
	h := newHarness(t, true, false)

	err := h.c.ToggleActive(h.ctx, "groq", true, models.ScopeShared)
	if !errors.Is(err, ErrMissingBackendID) {
		t.Fatalf("err = %v, want ErrMissingBackendID", err)
	}
	if len(h.fake.CallsFor(apitest.OpToggleProvider)) != 0 || len(h.fake.CallsFor(apitest.OpSavePersonal)) != 0 {
		t.Error("must not fall back to another request")
	}
}

func TestToggleActive_Shared(t *testing.T) {
	h := newHarness(t, true, false)

	if err := h.c.ToggleActive(h.ctx, "openai", false, models.ScopeShared); err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	calls := h.fake.CallsFor(apitest.OpToggleProvider)
	if len(calls) != 1 || *calls[0].ID != 1 || calls[0].Active {
		t.Fatalf("toggle calls = %+v", calls)
	}
	if rec, _ := h.c.Store().Shared("openai"); rec.IsActive {
		t.Error("shared record should be inactive after refetch")
	}
}

func TestToggleActive_Personal(t *testing.T) {
	h := newHarness(t, false, false)

	if err := h.c.ToggleActive(h.ctx, "openai", false, models.ScopePersonal); err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	p := h.fake.CallsFor(apitest.OpSavePersonal)[0].Personal
	if p.IsActive || p.APIKey != nil {
		t.Errorf("payload = %+v, want inactive with api_key omitted", p)
	}
	if got := h.state(t, "openai").AccessStatus; got != models.AccessDisabled {
		t.Errorf("AccessStatus = %q, want disabled", got)
	}
}

func TestToggleUseShared_NotPermitted(t *testing.T) {
	h := newHarness(t, false, false)

	err := h.c.ToggleUseShared(h.ctx, "openai", true)
	if !errors.Is(err, ErrSharedNotPermitted) {
		t.Fatalf("err = %v, want ErrSharedNotPermitted", err)
	}
	if len(h.fake.CallsFor(apitest.OpSavePersonal)) != 0 {
		t.Error("no write may be sent")
	}
}

func TestToggleUseShared_WritesPersonalOnly(t *testing.T) {
	h := newHarness(t, false, true)

	if err := h.c.ToggleUseShared(h.ctx, "openai", true); err != nil {
		t.Fatalf("ToggleUseShared: %v", err)
	}
	if len(h.fake.CallsFor(apitest.OpSaveShared)) != 0 || len(h.fake.CallsFor(apitest.OpToggleProvider)) != 0 {
		t.Error("ToggleUseShared must never touch the shared record")
	}
	p := h.fake.CallsFor(apitest.OpSavePersonal)[0].Personal
	if !p.UseSharedAPI || p.APIKey != nil {
		t.Errorf("payload = %+v", p)
	}
	if !h.state(t, "openai").UseShared {
		t.Error("state should show the opt-in")
	}
}

// blockFirst holds the first request of op until release is closed.
func blockFirst(f *apitest.Fake, op string) (started <-chan struct{}, release chan struct{}) {
	s := make(chan struct{})
	r := make(chan struct{})
	var once sync.Once
	f.Before = func(_ context.Context, got string) error {
		if got != op {
			return nil
		}
		first := false
		once.Do(func() { first = true })
		if first {
			close(s)
			<-r
		}
		return nil
	}
	return s, r
}

func TestToggleUseShared_RapidTogglesKeepLastIntent(t *testing.T) {
	h := newHarness(t, false, true)
	key := credstore.PersonalKey("openai")
	started, release := blockFirst(h.fake, apitest.OpSavePersonal)

	errs := make(chan error, 2)
	go func() { errs <- h.c.ToggleUseShared(h.ctx, "openai", true) }()
	<-started
	go func() { errs <- h.c.ToggleUseShared(h.ctx, "openai", false) }()
	for h.c.Pending(key) < 2 {
		time.Sleep(time.Millisecond)
	}
	close(release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("ToggleUseShared: %v", err)
		}
	}

	calls := h.fake.CallsFor(apitest.OpSavePersonal)
	if len(calls) != 2 {
		t.Fatalf("writes = %d, want 2", len(calls))
	}
	if !calls[0].Personal.UseSharedAPI || calls[1].Personal.UseSharedAPI {
		t.Error("writes should be sent in intent order")
	}
	if s, _ := h.fake.Setting("openai"); s.UseSharedAPI {
		t.Error("server state should match the second intent")
	}
	if h.state(t, "openai").UseShared {
		t.Error("local state should match the second intent")
	}
}

func TestToggleUseShared_WaitingIntentIsSuperseded(t *testing.T) {
	h := newHarness(t, false, true)
	key := credstore.PersonalKey("openai")
	started, release := blockFirst(h.fake, apitest.OpSavePersonal)

	first := make(chan error, 1)
	second := make(chan error, 1)
	third := make(chan error, 1)
	go func() { first <- h.c.ToggleUseShared(h.ctx, "openai", true) }()
	<-started
	go func() { second <- h.c.ToggleUseShared(h.ctx, "openai", false) }()
	for h.c.Pending(key) < 2 {
		time.Sleep(time.Millisecond)
	}
	go func() { third <- h.c.ToggleUseShared(h.ctx, "openai", true) }()
	if err := <-second; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("second = %v, want ErrSuperseded", err)
	}
	close(release)

	if err := <-first; err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := <-third; err != nil {
		t.Fatalf("third: %v", err)
	}
	if got := len(h.fake.CallsFor(apitest.OpSavePersonal)); got != 2 {
		t.Errorf("writes = %d, want 2", got)
	}
	if s, _ := h.fake.Setting("openai"); !s.UseSharedAPI {
		t.Error("server state should match the latest intent")
	}
	for _, n := range h.notes.all() {
		if n.Level == LevelError {
			t.Errorf("superseded intent must not notify an error: %+v", n)
		}
	}
}

func TestSaveKey_CompletesAfterCallerCancels(t *testing.T) {
	h := newHarness(t, false, false)
	key := credstore.PersonalKey("openai")
	started, release := blockFirst(h.fake, apitest.OpSavePersonal)

	ctx, cancel := context.WithCancel(h.ctx)
	done := make(chan error, 1)
	go func() { done <- h.c.SaveKey(ctx, "openai", models.ScopePersonal, "sk-late") }()
	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	close(release)
	waitIdle(t, h.c, key)

	if s, _ := h.fake.Setting("openai"); s.PersonalAPIKeyValue != "sk-late" {
		t.Errorf("stored key = %q, want sk-late", s.PersonalAPIKeyValue)
	}
	if l, _ := h.c.Store().LocalKey(key); l.Value != "sk-late" {
		t.Errorf("local key = %q, want sk-late", l.Value)
	}
}

func TestSaveKey_FailureAfterCallerCancelsNotifies(t *testing.T) {
	h := newHarness(t, false, false)
	key := credstore.PersonalKey("openai")
	h.fake.FailNext(apitest.OpSavePersonal, apitest.Reject(http.StatusInternalServerError, "Database unavailable."))
	started, release := blockFirst(h.fake, apitest.OpSavePersonal)

	ctx, cancel := context.WithCancel(h.ctx)
	done := make(chan error, 1)
	go func() { done <- h.c.SaveKey(ctx, "openai", models.ScopePersonal, "sk-late") }()
	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	close(release)
	waitIdle(t, h.c, key)

	notes := h.notes.all()
	if len(notes) != 1 || notes[0].Level != LevelError || notes[0].Message != "Database unavailable." {
		t.Fatalf("notifications = %+v, want one error", notes)
	}
	if l, _ := h.c.Store().LocalKey(key); l.Value != "sk-mine" {
		t.Errorf("local key = %q, want sk-mine", l.Value)
	}
}

func TestSharedBackendProvidersShareSlot(t *testing.T) {
	h := newHarness(t, false, false)
	started, release := blockFirst(h.fake, apitest.OpSavePersonal)

	errs := make(chan error, 2)
	go func() { errs <- h.c.SaveKey(h.ctx, "gemini", models.ScopePersonal, "g-key") }()
	<-started
	go func() { errs <- h.c.ToggleActive(h.ctx, "veo", false, models.ScopePersonal) }()
	for h.c.Pending(credstore.PersonalKey("veo")) < 2 {
		time.Sleep(time.Millisecond)
	}
	if got := len(h.fake.CallsFor(apitest.OpSavePersonal)); got != 1 {
		t.Fatalf("writes in flight = %d, want 1", got)
	}
	close(release)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	calls := h.fake.CallsFor(apitest.OpSavePersonal)
	if len(calls) != 2 {
		t.Fatalf("writes = %d, want 2", len(calls))
	}
	if calls[0].Personal.ID != nil {
		t.Error("first write should create the google record")
	}
	if calls[1].Personal.ID == nil {
		t.Error("second write should target the record the first one created")
	}
	if s, _ := h.fake.Setting("google"); s.PersonalAPIKeyValue != "g-key" || s.IsActive {
		t.Errorf("stored setting = %+v, want g-key and inactive", s)
	}
}

func TestDistinctKeysRunConcurrently(t *testing.T) {
	h := newHarness(t, true, false)
	personalStarted := make(chan struct{})
	sharedStarted := make(chan struct{})
	release := make(chan struct{})
	h.fake.Before = func(_ context.Context, op string) error {
		switch op {
		case apitest.OpSavePersonal:
			close(personalStarted)
			<-release
		case apitest.OpSaveShared:
			close(sharedStarted)
			<-release
		}
		return nil
	}

	errs := make(chan error, 2)
	go func() { errs <- h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, "sk-p") }()
	go func() { errs <- h.c.SaveKey(h.ctx, "openai", models.ScopeShared, "sk-s") }()

	<-personalStarted
	<-sharedStarted
	close(release)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("SaveKey: %v", err)
		}
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	h := newHarness(t, false, false)
	if err := h.c.SaveKey(h.ctx, "openai", models.ScopePersonal, "sk-new"); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}
	_ = h.c.SaveKey(h.ctx, "nope", models.ScopePersonal, "x")

	path := filepath.Join(t.TempDir(), "aikeys.prom")
	if err := h.metrics.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`aikeys_mutations_total{op="save_key",result="ok",scope="personal"} 1`,
		`aikeys_mutations_total{op="save_key",result="unresolvable_provider",scope="personal"} 1`,
		`aikeys_refreshes_total{result="ok"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q\n%s", want, out)
		}
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.observeMutation(OpSaveKey, "personal", nil, 0)
	m.observeRefresh(nil)
	if err := m.WriteTextfile("/nonexistent/x.prom"); err != nil {
		t.Errorf("nil metrics should not write: %v", err)
	}
}
