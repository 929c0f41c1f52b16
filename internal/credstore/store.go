package credstore

import (
	"fmt"
	"sync"

	"github.com/joshuadavidthomas/aikeys/internal/models"
)

// Key addresses one credential: a provider and the scope it is written in.
type Key struct {
	ProviderID string
	Scope      models.Scope
}

func (k Key) String() string { return fmt.Sprintf("%s/%s", k.ProviderID, k.Scope) }

func PersonalKey(providerID string) Key { return Key{ProviderID: providerID, Scope: models.ScopePersonal} }
func SharedKey(providerID string) Key   { return Key{ProviderID: providerID, Scope: models.ScopeShared} }

type EventKind int

const (
	EventReplaced EventKind = iota
	EventInvalidated
	EventLocalChanged
)

func (k EventKind) String() string {
	switch k {
	case EventReplaced:
		return "replaced"
	case EventInvalidated:
		return "invalidated"
	case EventLocalChanged:
		return "local-changed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the store changes. Key is zero for
// EventReplaced.
type Event struct {
	Kind       EventKind
	Key        Key
	Generation uint64
}

// Local is a locally held key value. Dirty marks a value the operator has
// typed but not yet committed; fetches never overwrite it.
type Local struct {
	Value string
	Dirty bool
}

// Store is the session's credential store. It holds the latest Snapshot plus
// one locally held key value per credential Key and fans out change events.
type Store struct {
	mu    sync.RWMutex
	snap  Snapshot
	gen   uint64
	local map[Key]Local
	stale map[Key]bool

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

func New() *Store {
	return &Store{
		snap:  Snapshot{Personal: map[string]models.PersonalCredentialRecord{}, Shared: map[string]models.SharedCredentialRecord{}},
		local: make(map[Key]Local),
		stale: make(map[Key]bool),
		subs:  make(map[int]func(Event)),
	}
}

// Replace installs a freshly built snapshot and seeds local key values from
// it. A fetched mask or blank never overwrites a non-empty local value, and a
// dirty local value is never overwritten at all.
func (s *Store) Replace(snap Snapshot) uint64 {
	s.mu.Lock()
	s.snap = snap.clone()
	s.gen++
	gen := s.gen

	seen := make(map[Key]bool)
	for id, rec := range snap.Personal {
		k := PersonalKey(id)
		seen[k] = true
		s.seedLocked(k, rec.PersonalAPIKeyValue)
	}
	for id, rec := range snap.Shared {
		k := SharedKey(id)
		seen[k] = true
		s.seedLocked(k, rec.SharedAPIKeyValue)
	}
	for k, l := range s.local {
		if !seen[k] && !l.Dirty {
			delete(s.local, k)
		}
	}
	s.stale = make(map[Key]bool)
	s.mu.Unlock()

	s.publish(Event{Kind: EventReplaced, Generation: gen})
	return gen
}

func (s *Store) seedLocked(k Key, fetched string) {
	cur, ok := s.local[k]
	if ok && cur.Dirty {
		return
	}
	if ok && cur.Value != "" && !models.IsKeyPresent(fetched) {
		return
	}
	s.local[k] = Local{Value: fetched}
}

func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

func (s *Store) Providers() []models.ProviderDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ProviderDescriptor(nil), s.snap.Providers...)
}

func (s *Store) Descriptor(providerID string) (models.ProviderDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Descriptor(providerID)
}

func (s *Store) BackendID(providerID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.BackendID(providerID)
}

// Personal returns the fetched personal record without local overlay.
func (s *Store) Personal(providerID string) (models.PersonalCredentialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.snap.Personal[providerID]
	return rec, ok
}

// Shared returns the fetched shared record without local overlay.
func (s *Store) Shared(providerID string) (models.SharedCredentialRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.snap.Shared[providerID]
	return rec, ok
}

// Credential returns the merged credential for a provider with locally held
// key values overlaid on the fetched records. It returns nil when neither
// record exists.
func (s *Store) Credential(providerID string) models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var personal *models.PersonalCredentialRecord
	if rec, ok := s.snap.Personal[providerID]; ok {
		if l, ok := s.local[PersonalKey(providerID)]; ok {
			rec.PersonalAPIKeyValue = l.Value
		}
		personal = &rec
	}
	var shared *models.SharedCredentialRecord
	if rec, ok := s.snap.Shared[providerID]; ok {
		if l, ok := s.local[SharedKey(providerID)]; ok {
			rec.SharedAPIKeyValue = l.Value
		}
		shared = &rec
	}
	return models.NewCredential(personal, shared)
}

// LocalKey returns the locally held value for k.
func (s *Store) LocalKey(k Key) (Local, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.local[k]
	return l, ok
}

// Edit records an uncommitted value typed by the operator.
func (s *Store) Edit(k Key, value string) {
	s.setLocal(k, Local{Value: value, Dirty: true})
}

// Commit records a value the backend has accepted.
func (s *Store) Commit(k Key, value string) {
	s.setLocal(k, Local{Value: value})
}

// Discard drops an uncommitted edit and falls back to the fetched value.
func (s *Store) Discard(k Key) {
	s.mu.Lock()
	var fetched string
	switch k.Scope {
	case models.ScopeShared:
		fetched = s.snap.Shared[k.ProviderID].SharedAPIKeyValue
	default:
		fetched = s.snap.Personal[k.ProviderID].PersonalAPIKeyValue
	}
	s.local[k] = Local{Value: fetched}
	gen := s.gen
	s.mu.Unlock()
	s.publish(Event{Kind: EventLocalChanged, Key: k, Generation: gen})
}

// ClearLocal empties the local value for k and returns what was there so a
// failed delete can put it back.
func (s *Store) ClearLocal(k Key) (Local, bool) {
	s.mu.Lock()
	prev, had := s.local[k]
	s.local[k] = Local{}
	gen := s.gen
	s.mu.Unlock()
	s.publish(Event{Kind: EventLocalChanged, Key: k, Generation: gen})
	return prev, had
}

// RestoreLocal puts back a value previously returned by ClearLocal. It does
// nothing once k holds anything other than the cleared value, so a commit or
// edit made since the clear is kept.
func (s *Store) RestoreLocal(k Key, prev Local, had bool) {
	s.mu.Lock()
	if cur, ok := s.local[k]; ok && (cur.Value != "" || cur.Dirty) {
		s.mu.Unlock()
		return
	}
	if had {
		s.local[k] = prev
	} else {
		delete(s.local, k)
	}
	gen := s.gen
	s.mu.Unlock()
	s.publish(Event{Kind: EventLocalChanged, Key: k, Generation: gen})
}

func (s *Store) setLocal(k Key, l Local) {
	s.mu.Lock()
	s.local[k] = l
	gen := s.gen
	s.mu.Unlock()
	s.publish(Event{Kind: EventLocalChanged, Key: k, Generation: gen})
}

// Invalidate marks k as needing a refetch. The mark clears on the next
// Replace.
func (s *Store) Invalidate(k Key) {
	s.mu.Lock()
	s.stale[k] = true
	gen := s.gen
	s.mu.Unlock()
	s.publish(Event{Kind: EventInvalidated, Key: k, Generation: gen})
}

func (s *Store) IsStale(k Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale[k]
}

// Subscribe registers fn for change events. The returned func unregisters
// it. Events are delivered synchronously on the goroutine that caused them.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(e Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}
