package testutil

import (
	"context"
	"slices"
	"sync"
)

// Recorder is a notify.Notifier that keeps every address it is told
// about, in order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu        sync.Mutex
	calls     [][]string
	addresses []string
}

// Notify records one change report.
func (r *Recorder) Notify(_ context.Context, addresses ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, slices.Clone(addresses))
	r.addresses = append(r.addresses, addresses...)
}

// Addresses returns every address reported so far.
func (r *Recorder) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.addresses)
}

// Calls returns the number of Notify calls.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.addresses = nil
}
