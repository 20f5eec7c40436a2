// Package panel implements the notification panel's state machine.
//
// The state is an immutable value: every transition returns the next State
// and never mutates the receiver. Mutations are optimistic: Begin* applies
// the local change and snapshots the prior list, Resolve* commits it or
// restores the snapshot when the network call failed. A generation counter
// guards open/close races so a slow fetch can never clobber a fresher one.
package panel

import (
	"context"
	"sort"

	"github.com/lamiedu/taarifa/core/notification"
)

// Client is the slice of the notification API the panel needs.
type Client interface {
	FetchList(ctx context.Context) ([]notification.Notification, error)
	FetchUnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int) error
	MarkAllRead(ctx context.Context) (int, error)
	Delete(ctx context.Context, id int) error
}

type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpening
	PhaseLoaded
	PhaseLoadFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpening:
		return "opening"
	case PhaseLoaded:
		return "loaded"
	case PhaseLoadFailed:
		return "load-failed"
	}
	return "unknown"
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingMarkOne
	pendingMarkAll
	pendingDelete
)

// pending is the transient sub-state of an in-flight mutation, holding the
// snapshot needed to roll the optimistic change back.
type pending struct {
	kind     pendingKind
	id       int
	snapshot []notification.Notification
	badge    int
}

// State is one point of the panel state machine.
type State struct {
	Phase Phase

	// Generation increments on every open/retry/close; load results carrying
	// a stale generation are discarded.
	Generation int

	Items []notification.Notification
	Badge int

	// LoadErr is set in PhaseLoadFailed; the UI renders it with a retry
	// affordance.
	LoadErr string

	// ItemErrs carries per-item inline errors from failed mutations, keyed
	// by notification id. They do not affect the phase.
	ItemErrs map[int]string

	pending pending
}

func NewState() State {
	return State{Phase: PhaseClosed}
}

// Busy reports whether a mutation is in flight.
func (s State) Busy() bool { return s.pending.kind != pendingNone }

// Open starts loading the panel. Re-opening while a fetch is outstanding
// bumps the generation so the earlier response is discarded on arrival.
func (s State) Open() State {
	next := s
	next.Phase = PhaseOpening
	next.Generation++
	next.LoadErr = ""
	next.ItemErrs = nil
	next.pending = pending{}
	return next
}

// Retry re-runs the load after a failure.
func (s State) Retry() State {
	if s.Phase != PhaseLoadFailed {
		return s
	}
	return s.Open()
}

// Close closes the panel. Any in-flight fetch or mutation result is
// discarded; the next Open starts from scratch.
func (s State) Close() State {
	next := NewState()
	next.Generation = s.Generation + 1
	return next
}

// ApplyLoad reconciles a finished open fetch. Results from a superseded
// generation are ignored.
func (s State) ApplyLoad(generation int, items []notification.Notification, unread int, err error) State {
	if generation != s.Generation || s.Phase != PhaseOpening {
		return s
	}
	next := s
	if err != nil {
		next.Phase = PhaseLoadFailed
		next.LoadErr = err.Error()
		return next
	}
	next.Phase = PhaseLoaded
	next.Items = sortItems(items)
	next.Badge = unread
	next.LoadErr = ""
	return next
}

// BeginMarkRead optimistically marks one notification read. It reports false
// when the panel is not loaded, another mutation is in flight, or the item is
// missing or already read.
func (s State) BeginMarkRead(id int) (State, bool) {
	if s.Phase != PhaseLoaded || s.Busy() {
		return s, false
	}
	idx := s.indexOf(id)
	if idx < 0 || s.Items[idx].IsRead {
		return s, false
	}

	next := s
	next.pending = pending{kind: pendingMarkOne, id: id, snapshot: s.Items, badge: s.Badge}
	next.Items = cloneItems(s.Items)
	next.Items[idx].IsRead = true
	next.Badge--
	next.ItemErrs = dropItemErr(s.ItemErrs, id)
	return next, true
}

// ResolveMarkRead commits or rolls back a BeginMarkRead.
func (s State) ResolveMarkRead(id int, err error) State {
	if s.pending.kind != pendingMarkOne || s.pending.id != id {
		return s
	}
	next := s
	if err != nil {
		next.Items = s.pending.snapshot
		next.Badge = s.pending.badge
		next.ItemErrs = withItemErr(s.ItemErrs, id, err.Error())
	}
	next.pending = pending{}
	return next
}

// BeginMarkAllRead optimistically marks every notification read.
func (s State) BeginMarkAllRead() (State, bool) {
	if s.Phase != PhaseLoaded || s.Busy() {
		return s, false
	}

	next := s
	next.pending = pending{kind: pendingMarkAll, snapshot: s.Items, badge: s.Badge}
	next.Items = cloneItems(s.Items)
	for i := range next.Items {
		next.Items[i].IsRead = true
	}
	next.Badge = 0
	next.ItemErrs = nil
	return next, true
}

// ResolveMarkAllRead commits or rolls back a BeginMarkAllRead. On rollback
// every item returns to its pre-action read state and the badge is restored.
func (s State) ResolveMarkAllRead(err error) State {
	if s.pending.kind != pendingMarkAll {
		return s
	}
	next := s
	if err != nil {
		next.Items = s.pending.snapshot
		next.Badge = s.pending.badge
		next.LoadErr = "" // panel stays Loaded; the failure is not fatal
	}
	next.pending = pending{}
	return next
}

// BeginDelete optimistically removes one notification from the list. The
// badge only drops when the removed item was unread.
func (s State) BeginDelete(id int) (State, bool) {
	if s.Phase != PhaseLoaded || s.Busy() {
		return s, false
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return s, false
	}

	next := s
	next.pending = pending{kind: pendingDelete, id: id, snapshot: s.Items, badge: s.Badge}
	next.Items = append(cloneItems(s.Items[:idx]), s.Items[idx+1:]...)
	if !s.Items[idx].IsRead {
		next.Badge--
	}
	next.ItemErrs = dropItemErr(s.ItemErrs, id)
	return next, true
}

// ResolveDelete commits or rolls back a BeginDelete. Rollback restores the
// snapshot, which puts the item back at its original position.
func (s State) ResolveDelete(id int, err error) State {
	if s.pending.kind != pendingDelete || s.pending.id != id {
		return s
	}
	next := s
	if err != nil {
		next.Items = s.pending.snapshot
		next.Badge = s.pending.badge
		next.ItemErrs = withItemErr(s.ItemErrs, id, err.Error())
	}
	next.pending = pending{}
	return next
}

func (s State) indexOf(id int) int {
	for i, n := range s.Items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Load runs the open fetches concurrently. Both must succeed; the first
// failure cancels the other and is returned.
func Load(ctx context.Context, c Client) ([]notification.Notification, int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		items  []notification.Notification
		unread int
	)
	errc := make(chan error, 2)
	go func() {
		var err error
		if items, err = c.FetchList(ctx); err != nil {
			cancel()
		}
		errc <- err
	}()
	go func() {
		var err error
		if unread, err = c.FetchUnreadCount(ctx); err != nil {
			cancel()
		}
		errc <- err
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, 0, firstErr
	}
	return items, unread, nil
}

// newest first; id breaks created_at ties
func sortItems(items []notification.Notification) []notification.Notification {
	sorted := cloneItems(items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

func cloneItems(items []notification.Notification) []notification.Notification {
	cloned := make([]notification.Notification, len(items))
	copy(cloned, items)
	return cloned
}

func withItemErr(errs map[int]string, id int, msg string) map[int]string {
	next := make(map[int]string, len(errs)+1)
	for k, v := range errs {
		next[k] = v
	}
	next[id] = msg
	return next
}

func dropItemErr(errs map[int]string, id int) map[int]string {
	if _, ok := errs[id]; !ok {
		return errs
	}
	next := make(map[int]string, len(errs))
	for k, v := range errs {
		if k != id {
			next[k] = v
		}
	}
	return next
}
