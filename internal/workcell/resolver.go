// Package workcell decides which execution targets are eligible for
// the current instruction selection and caches session listings.
package workcell

import (
	"context"
	"fmt"
	"sync"

	"github.com/labops/runcontrol/pkg/client"
)

// SessionLister fetches the open sessions on a workcell. The API
// client's workcells service satisfies it.
type SessionLister interface {
	Sessions(ctx context.Context, workcellID string) ([]client.Session, error)
}

// Eligible filters workcells against the selection. Integration
// workcells package work into a single downloadable archive, so they
// only appear when every remaining instruction is selected.
func Eligible(all []client.Workcell, selectedCount, nonCompletedCount int) []client.Workcell {
	if selectedCount == nonCompletedCount {
		out := make([]client.Workcell, len(all))
		copy(out, all)
		return out
	}

	out := make([]client.Workcell, 0, len(all))
	for _, wc := range all {
		if wc.Type != client.WorkcellIntegration {
			out = append(out, wc)
		}
	}
	return out
}

// Resolver caches session listings per workcell. Changing the chosen
// workcell invalidates the whole cache. Lookups may arrive from
// concurrent fetch goroutines, so the cache is guarded.
type Resolver struct {
	lister SessionLister

	mu      sync.Mutex
	current string
	cache   map[string][]client.Session
}

// NewResolver builds a resolver over the given session lister.
func NewResolver(lister SessionLister) *Resolver {
	return &Resolver{
		lister: lister,
		cache:  make(map[string][]client.Session),
	}
}

// SessionsFor returns the sessions for a workcell, fetching on cache
// miss. Selecting a different workcell resets the cache before the
// fetch.
func (r *Resolver) SessionsFor(ctx context.Context, workcellID string) ([]client.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if workcellID != r.current {
		r.cache = make(map[string][]client.Session)
		r.current = workcellID
	}

	if sessions, ok := r.cache[workcellID]; ok {
		return sessions, nil
	}

	sessions, err := r.lister.Sessions(ctx, workcellID)
	if err != nil {
		return nil, fmt.Errorf("resolve sessions: %w", err)
	}

	r.cache[workcellID] = sessions
	return sessions, nil
}
