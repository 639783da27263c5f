package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestOpenerOpensURLAndClosesOnce(t *testing.T) {
	var opened []string
	o := NewOpener(WithOpenFunc(func(url string) error {
		opened = append(opened, url)
		return nil
	}))

	w, err := o.Open(context.Background(), "https://accounts.example.test/auth?state=abc")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(opened) != 1 || opened[0] != "https://accounts.example.test/auth?state=abc" {
		t.Fatalf("unexpected opened urls: %v", opened)
	}
	if isClosed(w.Closed()) {
		t.Fatalf("window must start open")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !isClosed(w.Closed()) {
		t.Fatalf("expected window closed after Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestOpenerTimeoutClosesWindow(t *testing.T) {
	o := NewOpener(WithOpenFunc(func(string) error { return nil }), WithTimeout(10*time.Millisecond))
	w, err := o.Open(context.Background(), "https://accounts.example.test/auth")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	select {
	case <-w.Closed():
	case <-time.After(time.Second):
		t.Fatalf("expected window to close after timeout")
	}
}

func TestOpenerReplacesPreviousWindow(t *testing.T) {
	o := NewOpener(WithOpenFunc(func(string) error { return nil }))
	first, _ := o.Open(context.Background(), "https://a.example.test")
	second, _ := o.Open(context.Background(), "https://b.example.test")
	if !isClosed(first.Closed()) {
		t.Fatalf("expected previous window closed when a new one opens")
	}
	if isClosed(second.Closed()) {
		t.Fatalf("expected new window open")
	}
	_ = second.Close()
}

func TestOpenerLaunchFailure(t *testing.T) {
	errLaunch := errors.New("no display")
	o := NewOpener(WithOpenFunc(func(string) error { return errLaunch }))
	if _, err := o.Open(context.Background(), "https://a.example.test"); !errors.Is(err, errLaunch) {
		t.Fatalf("expected launch error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Open(ctx, "https://a.example.test"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
