/*
Package ambient holds the "current" context.Context for code that
cannot pass one explicitly.

Go has no thread-local storage, so the ambient context is an explicit
Storage value that is constructed once and handed to everything that
needs to share it. Attach pushes a snapshot and returns the previous one;
Detach pops back to it. Attach and Detach calls must be strictly nested.

	storage := ambient.New(context.Background())
	prior := storage.Attach(ctx)
	defer storage.Detach(ctx, prior)
*/
package ambient

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

type Storage struct {
	lock    sync.Mutex
	current context.Context
	depth   int
	log     zerolog.Logger
}

type Option func(*Storage)

// WithLogger sets the logger used to report mismatched Detach calls.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Storage) {
		s.log = log
	}
}

// New creates a Storage whose initial current context is root. A nil
// root is replaced by context.Background().
func New(root context.Context, opts ...Option) *Storage {
	if root == nil {
		root = context.Background()
	}
	s := &Storage{
		current: root,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Storage) Current() context.Context {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}

// Attach makes ctx current and returns the context that was current
// before.
func (s *Storage) Attach(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	prior := s.current
	s.current = ctx
	s.depth++
	return prior
}

// Detach restores prior. attached should be the context that was passed
// to the matching Attach; if it is not current the nesting was violated.
// That is logged and prior is restored anyway.
func (s *Storage) Detach(attached, prior context.Context) {
	if prior == nil {
		prior = context.Background()
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current != attached {
		s.log.Warn().Int("depth", s.depth).Msg("context was not attached when detaching")
	}
	s.current = prior
	if s.depth > 0 {
		s.depth--
	}
}

// Depth is the number of Attach calls not yet matched by Detach.
func (s *Storage) Depth() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.depth
}
