// Package guard provides the per-instance critical section that every engine
// operation runs inside. Operations on one instance are serialized; an
// operation started from within another engine operation (for example from a
// token receiver hook) is rejected instead of being allowed to run nested.
//
// Callbacks that a collaborator wants to run on behalf of an operation are
// deferred with Defer: they run after the section is released, so they see
// fully committed state, but still carry the operation's context and are
// therefore still refused entry into any engine.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/rovshanmuradov/lpvault/internal/types"
)

type activeKey struct{}

type frame struct {
	name     string
	deferred []func()
}

// Section is an exclusive, non-reentrant critical section.
type Section struct {
	mu   sync.Mutex
	name string
}

// New creates a section labelled with the owning engine's name.
func New(name string) *Section {
	return &Section{name: name}
}

// Name returns the section label.
func (s *Section) Name() string {
	return s.name
}

// Enter acquires the section. The returned context marks the call as running
// inside an engine operation and must be handed to collaborators that may call
// back. release unlocks the section and then runs deferred callbacks; it is
// safe to call more than once.
func (s *Section) Enter(ctx context.Context) (context.Context, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if f, ok := ctx.Value(activeKey{}).(*frame); ok {
		return nil, nil, fmt.Errorf("%w: %s called while %s is in progress",
			types.ErrReentrantCall, s.name, f.name)
	}

	s.mu.Lock()
	f := &frame{name: s.name}
	inner := context.WithValue(ctx, activeKey{}, f)

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Unlock()
			for _, fn := range f.deferred {
				fn()
			}
		})
	}
	return inner, release, nil
}

// Do runs fn while holding the section. Read paths use it to observe a
// consistent state without participating in reentrancy tracking.
func (s *Section) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Defer schedules fn to run once the operation owning ctx releases its
// section. Outside of any operation fn runs immediately.
func Defer(ctx context.Context, fn func()) {
	if f, ok := ctx.Value(activeKey{}).(*frame); ok {
		f.deferred = append(f.deferred, fn)
		return
	}
	fn()
}

// Active returns the name of the engine operation ctx belongs to, if any.
func Active(ctx context.Context) (string, bool) {
	if f, ok := ctx.Value(activeKey{}).(*frame); ok {
		return f.name, true
	}
	return "", false
}
