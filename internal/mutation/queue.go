package mutation

import (
	"context"
	"sync"

	"github.com/joshuadavidthomas/aikeys/internal/credstore"
)

// Op is the kind of write a request performs. Within one credential key,
// only the newest waiting request of each Op survives.
type Op string

const (
	OpSaveKey         Op = "save_key"
	OpToggleActive    Op = "toggle_active"
	OpToggleUseShared Op = "toggle_use_shared"
)

// job is one queued write. superseded runs instead of run when a newer job
// of the same op replaces it while it waits.
type job struct {
	op         Op
	ctx        context.Context
	run        func(context.Context) error
	superseded func()
	done       chan struct{}
	err        error
}

func (j *job) finish(err error) {
	j.err = err
	close(j.done)
}

type slot struct {
	running bool
	waiting []*job
}

// queue serializes writes per credential key. One request per key is in
// flight at a time; requests for different keys run independently.
type queue struct {
	mu    sync.Mutex
	slots map[credstore.Key]*slot
}

func newQueue() *queue {
	return &queue{slots: make(map[credstore.Key]*slot)}
}

// enqueue adds j to key's slot and returns once it settles or ctx ends. A
// waiting job of the same op is superseded. The job runs detached from ctx's
// cancellation, so its result is applied even if the caller stops waiting.
func (q *queue) enqueue(ctx context.Context, key credstore.Key, j *job) error {
	j.ctx = context.WithoutCancel(ctx)
	j.done = make(chan struct{})

	q.mu.Lock()
	s := q.slots[key]
	if s == nil {
		s = &slot{}
		q.slots[key] = s
	}
	var dropped []*job
	kept := s.waiting[:0]
	for _, w := range s.waiting {
		if w.op == j.op {
			dropped = append(dropped, w)
			continue
		}
		kept = append(kept, w)
	}
	s.waiting = append(kept, j)
	if !s.running {
		s.running = true
		go q.drain(key, s)
	}
	q.mu.Unlock()

	for _, w := range dropped {
		if w.superseded != nil {
			w.superseded()
		}
		w.finish(ErrSuperseded)
	}

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs the slot's jobs in order. A job is finished under the lock
// after the slot is torn down, so a woken caller never sees it as pending.
func (q *queue) drain(key credstore.Key, s *slot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(s.waiting) > 0 {
		j := s.waiting[0]
		s.waiting = s.waiting[1:]
		q.mu.Unlock()
		err := j.run(j.ctx)
		q.mu.Lock()
		if len(s.waiting) == 0 {
			s.running = false
			delete(q.slots, key)
		}
		j.finish(err)
	}
}

// pending reports how many requests for key are in flight or waiting.
func (q *queue) pending(key credstore.Key) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.slots[key]
	if s == nil {
		return 0
	}
	n := len(s.waiting)
	if s.running {
		n++
	}
	return n
}
