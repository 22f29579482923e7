package location

import (
	"context"
	"errors"
	"sync"
	"time"
)

// SimulatedProvider implements Provider and BackgroundScheduler from an
// in-process feed of positions. There is no Go SDK fronting a phone's
// GPS; in production the mobile bridge supplies the real provider, and
// this one backs tests and local runs.
type SimulatedProvider struct {
	mu          sync.Mutex
	current     Position
	denied      bool
	bgCapable   bool
	subscribers map[int]func(Position)
	nextSubID   int
	bgTasks     map[string]func(context.Context, Position)
	bgOpts      map[string]SubscribeOptions
}

func NewSimulatedProvider() *SimulatedProvider {
	return &SimulatedProvider{
		bgCapable:   true,
		subscribers: make(map[int]func(Position)),
		bgTasks:     make(map[string]func(context.Context, Position)),
		bgOpts:      make(map[string]SubscribeOptions),
	}
}

// SetPermissionDenied makes subsequent RequestPermission calls fail.
func (p *SimulatedProvider) SetPermissionDenied(denied bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denied = denied
}

// SetBackgroundCapable toggles the background-registration probe.
func (p *SimulatedProvider) SetBackgroundCapable(capable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bgCapable = capable
}

// Emit sets the current position and fans it out to every foreground
// subscriber, synchronously on the caller's goroutine.
func (p *SimulatedProvider) Emit(pos Position) {
	p.mu.Lock()
	p.current = pos
	fns := make([]func(Position), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(pos)
	}
}

// FireBackground invokes every registered background task with the
// given position, as the host scheduler would.
func (p *SimulatedProvider) FireBackground(ctx context.Context, pos Position) {
	p.mu.Lock()
	fns := make([]func(context.Context, Position), 0, len(p.bgTasks))
	for _, fn := range p.bgTasks {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, pos)
	}
}

func (p *SimulatedProvider) BackgroundTaskCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bgTasks)
}

func (p *SimulatedProvider) RequestPermission(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied {
		return ErrPermissionDenied
	}
	return nil
}

func (p *SimulatedProvider) GetCurrent(ctx context.Context, highAccuracy bool) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied {
		return nil, ErrPermissionDenied
	}
	pos := p.current
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}
	return &pos, nil
}

func (p *SimulatedProvider) Subscribe(opts SubscribeOptions, fn func(Position)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.denied {
		return nil, ErrPermissionDenied
	}
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	return &simulatedSubscription{provider: p, id: id}, nil
}

func (p *SimulatedProvider) IsCapable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bgCapable
}

func (p *SimulatedProvider) Register(ctx context.Context, taskID string, opts SubscribeOptions, fn func(context.Context, Position)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.bgCapable {
		return errors.New("background tasks not available")
	}
	p.bgTasks[taskID] = fn
	p.bgOpts[taskID] = opts
	return nil
}

func (p *SimulatedProvider) Unregister(ctx context.Context, taskID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bgTasks, taskID)
	delete(p.bgOpts, taskID)
	return nil
}

type simulatedSubscription struct {
	provider *SimulatedProvider
	id       int
	once     sync.Once
}

func (s *simulatedSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.provider.mu.Lock()
		delete(s.provider.subscribers, s.id)
		s.provider.mu.Unlock()
	})
	return nil
}
