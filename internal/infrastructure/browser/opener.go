// Package browser opens the authorization page in the user's system browser.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/kirillkom/docassist/internal/core/ports"
)

const defaultWindowTimeout = 5 * time.Minute

// Opener implements ports.WindowOpener. A system browser tab cannot be
// observed directly, so a window counts as closed once the timeout elapses or
// a newer window replaces it. The page reports an early close to the session
// itself.
type Opener struct {
	open    func(url string) error
	timeout time.Duration

	mu     sync.Mutex
	active *Window
}

type Option func(*Opener)

// WithOpenFunc replaces the system browser launcher.
func WithOpenFunc(fn func(url string) error) Option {
	return func(o *Opener) {
		if fn != nil {
			o.open = fn
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Opener) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func NewOpener(opts ...Option) *Opener {
	o := &Opener{
		open:    browser.OpenURL,
		timeout: defaultWindowTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Opener) Open(ctx context.Context, url string) (ports.InteractiveWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.open(url); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}

	w := newWindow(o.timeout)
	o.mu.Lock()
	prev := o.active
	o.active = w
	o.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return w, nil
}

type Window struct {
	closed chan struct{}
	once   sync.Once
	timer  *time.Timer
}

func newWindow(timeout time.Duration) *Window {
	w := &Window{closed: make(chan struct{})}
	w.timer = time.AfterFunc(timeout, func() { _ = w.Close() })
	return w
}

func (w *Window) Closed() <-chan struct{} {
	return w.closed
}

func (w *Window) Close() error {
	w.once.Do(func() {
		w.timer.Stop()
		close(w.closed)
	})
	return nil
}
