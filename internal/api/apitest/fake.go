// Package apitest provides an in-memory admin API for tests, usable directly
// as an api.Backend or served over HTTP.
package apitest

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/models"
)

const (
	OpListProviders  = "ListProviders"
	OpListMySettings = "ListMySettings"
	OpListModels     = "ListModels"
	OpSavePersonal   = "SavePersonalSetting"
	OpSaveShared     = "SaveSharedKey"
	OpToggleProvider = "ToggleProvider"
)

// Call records one request the fake served.
type Call struct {
	Op       string
	ID       *int64
	Personal *api.PersonalSettingPayload
	Shared   *api.SharedKeyPayload
	Active   bool
}

// Fake is an in-memory admin API. Stored keys are returned as the mask
// sentinel when MaskKeys is set, the way the real API hides them.
type Fake struct {
	MaskKeys       bool
	ModelsDisabled bool

	// Before runs at the start of every call, outside the lock. Tests use
	// it to block or sequence requests.
	Before func(ctx context.Context, op string) error

	mu        sync.Mutex
	nextID    int64
	providers map[int64]*api.ProviderRecord
	settings  map[int64]*api.PersonalSettingRecord
	models    []api.ModelRecord
	failures  map[string][]error
	calls     []Call
}

var _ api.Backend = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		nextID:    100,
		providers: make(map[int64]*api.ProviderRecord),
		settings:  make(map[int64]*api.PersonalSettingRecord),
		failures:  make(map[string][]error),
	}
}

// AddProvider seeds a provider row and returns its id.
func (f *Fake) AddProvider(p api.ProviderRecord) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		p.ID = f.allocID()
	}
	rec := p
	f.providers[p.ID] = &rec
	return p.ID
}

// AddSetting seeds a personal setting row and returns its id.
func (f *Fake) AddSetting(s api.PersonalSettingRecord) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == 0 {
		s.ID = f.allocID()
	}
	rec := s
	f.settings[s.ID] = &rec
	return s.ID
}

func (f *Fake) AddModels(ms ...api.ModelRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, ms...)
}

// FailNext queues err for the next call of op.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], err)
}

// Reject is a RemoteError the way the real API reports validation failures.
func Reject(status int, message string) error {
	return &api.RemoteError{StatusCode: status, Message: message}
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsFor returns the recorded calls of one op.
func (f *Fake) CallsFor(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Setting returns the stored personal setting for a provider name, unmasked.
func (f *Fake) Setting(providerName string) (api.PersonalSettingRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.findSettingLocked(providerName); s != nil {
		return *s, true
	}
	return api.PersonalSettingRecord{}, false
}

// Provider returns the stored provider row, unmasked.
func (f *Fake) Provider(id int64) (api.ProviderRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.providers[id]; ok {
		return *p, true
	}
	return api.ProviderRecord{}, false
}

func (f *Fake) ListProviders(ctx context.Context) ([]api.ProviderRecord, error) {
	if err := f.begin(ctx, Call{Op: OpListProviders}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.ProviderRecord, 0, len(f.providers))
	for _, p := range f.providers {
		rec := *p
		rec.SharedAPIKey = f.mask(rec.SharedAPIKey)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) ListMySettings(ctx context.Context) ([]api.PersonalSettingRecord, error) {
	if err := f.begin(ctx, Call{Op: OpListMySettings}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.PersonalSettingRecord, 0, len(f.settings))
	for _, s := range f.settings {
		rec := *s
		rec.PersonalAPIKeyValue = f.mask(rec.PersonalAPIKeyValue)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) ListModels(ctx context.Context) ([]api.ModelRecord, error) {
	if err := f.begin(ctx, Call{Op: OpListModels}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ModelsDisabled {
		return nil, &api.RemoteError{Method: http.MethodGet, Path: "models", StatusCode: http.StatusNotFound, Message: "Not found."}
	}
	return append([]api.ModelRecord(nil), f.models...), nil
}

func (f *Fake) SavePersonalSetting(ctx context.Context, p api.PersonalSettingPayload) (api.PersonalSettingRecord, error) {
	if err := f.begin(ctx, Call{Op: OpSavePersonal, ID: p.ID, Personal: &p}); err != nil {
		return api.PersonalSettingRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var rec *api.PersonalSettingRecord
	if p.ID != nil {
		rec = f.settings[*p.ID]
		if rec == nil {
			return api.PersonalSettingRecord{}, &api.RemoteError{Method: http.MethodPatch, Path: "personal-settings", StatusCode: http.StatusNotFound, Message: "Not found."}
		}
	} else if rec = f.findSettingLocked(p.ProviderName); rec == nil {
		rec = &api.PersonalSettingRecord{ID: f.allocID(), ProviderName: p.ProviderName}
		f.settings[rec.ID] = rec
	}
	if p.APIKey != nil {
		rec.PersonalAPIKeyValue = *p.APIKey
	}
	rec.UseSharedAPI = p.UseSharedAPI
	rec.IsActive = p.IsActive

	out := *rec
	out.PersonalAPIKeyValue = f.mask(out.PersonalAPIKeyValue)
	return out, nil
}

func (f *Fake) SaveSharedKey(ctx context.Context, backendID *int64, p api.SharedKeyPayload) (api.ProviderRecord, error) {
	if err := f.begin(ctx, Call{Op: OpSaveShared, ID: backendID, Shared: &p}); err != nil {
		return api.ProviderRecord{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var rec *api.ProviderRecord
	if backendID != nil {
		rec = f.providers[*backendID]
		if rec == nil {
			return api.ProviderRecord{}, &api.RemoteError{Method: http.MethodPatch, Path: "providers", StatusCode: http.StatusNotFound, Message: "Not found."}
		}
	} else {
		rec = &api.ProviderRecord{ID: f.allocID(), Name: p.ProviderName}
		f.providers[rec.ID] = rec
	}
	if p.SharedAPIKey != nil {
		rec.SharedAPIKey = *p.SharedAPIKey
	}
	rec.IsActive = p.IsActive

	out := *rec
	out.SharedAPIKey = f.mask(out.SharedAPIKey)
	return out, nil
}

func (f *Fake) ToggleProvider(ctx context.Context, backendID int64, active bool) error {
	id := backendID
	if err := f.begin(ctx, Call{Op: OpToggleProvider, ID: &id, Active: active}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.providers[backendID]
	if rec == nil {
		return &api.RemoteError{Method: http.MethodPatch, Path: "providers/toggle", StatusCode: http.StatusNotFound, Message: "Not found."}
	}
	rec.IsActive = active
	return nil
}

func (f *Fake) begin(ctx context.Context, c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	var err error
	if q := f.failures[c.Op]; len(q) > 0 {
		err, f.failures[c.Op] = q[0], q[1:]
	}
	before := f.Before
	f.mu.Unlock()

	if before != nil {
		if berr := before(ctx, c.Op); berr != nil {
			return berr
		}
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (f *Fake) allocID() int64 {
	f.nextID++
	return f.nextID
}

func (f *Fake) findSettingLocked(providerName string) *api.PersonalSettingRecord {
	name := strings.ToLower(strings.TrimSpace(providerName))
	var found *api.PersonalSettingRecord
	for _, s := range f.settings {
		if strings.ToLower(s.Identifier()) == name && (found == nil || s.ID < found.ID) {
			found = s
		}
	}
	return found
}

func (f *Fake) mask(v string) string {
	if f.MaskKeys && v != "" {
		return models.MaskSentinel
	}
	return v
}
