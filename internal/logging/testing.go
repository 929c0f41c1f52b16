package logging

import (
	"bytes"
	"context"
	"strings"
	"sync"
)

// Buffer collects log output from goroutines that outlive the call that
// started them, such as background mutations.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines returns the non-empty lines written so far.
func (b *Buffer) Lines() []string {
	var out []string
	for _, l := range strings.Split(b.String(), "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// NewTestContext returns a context carrying a logger configured per flags
// that writes to the returned Buffer.
func NewTestContext(flags Flags) (context.Context, *Buffer) {
	buf := &Buffer{}
	l := NewLogger(buf)
	Configure(l, flags)
	return WithLogger(context.Background(), l), buf
}
