package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/ports"
)

type backendFake struct {
	mu sync.Mutex

	uploaded  []string
	uploadFn  func(ctx context.Context, file ports.UploadFile) (*ports.UploadReceipt, error)
	listCalls int
	files     []domain.RemoteFile
	listErr   error

	authURL string
	authErr error

	queries   []domain.AnalysisQuery
	analyzeFn func(ctx context.Context, q domain.AnalysisQuery) (*domain.AnalysisResult, error)

	pingErr error
}

func (f *backendFake) Upload(ctx context.Context, file ports.UploadFile, _ string) (*ports.UploadReceipt, error) {
	f.mu.Lock()
	f.uploaded = append(f.uploaded, file.Name)
	fn := f.uploadFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, file)
	}
	return &ports.UploadReceipt{ServerID: "srv-" + file.Name}, nil
}

func (f *backendFake) ListFiles(context.Context) ([]domain.RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *backendFake) AuthURL(context.Context) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	if f.authURL == "" {
		return "https://accounts.example.test/auth", nil
	}
	return f.authURL, nil
}

func (f *backendFake) Analyze(ctx context.Context, q domain.AnalysisQuery) (*domain.AnalysisResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fn := f.analyzeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, q)
	}
	return &domain.AnalysisResult{Query: q.Query}, nil
}

func (f *backendFake) Ping(context.Context) error {
	return f.pingErr
}

func (f *backendFake) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploaded)
}

func (f *backendFake) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *backendFake) lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type tokenStoreFake struct {
	mu      sync.Mutex
	stored  *domain.StoredToken
	cleared int
}

func (s *tokenStoreFake) Load(context.Context) (*domain.StoredToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		return nil, nil
	}
	copyToken := *s.stored
	return &copyToken, nil
}

func (s *tokenStoreFake) Save(_ context.Context, token domain.StoredToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = &token
	return nil
}

func (s *tokenStoreFake) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = nil
	s.cleared++
	return nil
}

type windowFake struct {
	once   sync.Once
	closed chan struct{}
}

func newWindowFake() *windowFake {
	return &windowFake{closed: make(chan struct{})}
}

func (w *windowFake) Closed() <-chan struct{} { return w.closed }

func (w *windowFake) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}

type openerFake struct {
	opened []string
	onOpen func(url string, w *windowFake)
}

func (o *openerFake) Open(_ context.Context, url string) (ports.InteractiveWindow, error) {
	o.opened = append(o.opened, url)
	w := newWindowFake()
	if o.onOpen != nil {
		go o.onOpen(url, w)
	}
	return w, nil
}

type notifierFake struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (n *notifierFake) Notify(notice domain.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *notifierFake) contains(level domain.NoticeLevel, fragment string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, notice := range n.notices {
		if notice.Level == level && strings.Contains(notice.Message, fragment) {
			return true
		}
	}
	return false
}

type harness struct {
	ctrl     *SessionController
	backend  *backendFake
	tokens   *tokenStoreFake
	opener   *openerFake
	notifier *notifierFake
}

func newHarness(t *testing.T, cfg SessionConfig) *harness {
	t.Helper()
	h := &harness{
		backend:  &backendFake{},
		tokens:   &tokenStoreFake{},
		opener:   &openerFake{},
		notifier: &notifierFake{},
	}
	h.ctrl = NewSessionController(cfg, SessionDeps{
		Backend:  h.backend,
		Tokens:   h.tokens,
		Opener:   h.opener,
		Notifier: h.notifier,
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

func memFile(name, mediaType string, size int64) ports.UploadFile {
	return ports.UploadFile{
		Name:      name,
		MediaType: mediaType,
		Size:      size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("content")), nil
		},
	}
}

func (h *harness) uploadOne(t *testing.T, name string) {
	t.Helper()
	report, err := h.ctrl.SubmitFiles(context.Background(), []ports.UploadFile{memFile(name, "application/pdf", 1024)})
	if err != nil {
		t.Fatalf("SubmitFiles() error = %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("expected upload of %s to succeed, got %+v", name, report)
	}
}

var errUnreachable = domain.WrapError(domain.ErrNetwork, "analyze", errors.New("dial tcp 127.0.0.1:8000: connection refused"))

// deliver hands a token over with the state of the latest attempt, issuing
// one first when no attempt ran yet.
func (h *harness) deliver(token json.RawMessage, expiresAt *time.Time) error {
	h.ctrl.mu.Lock()
	if h.ctrl.authState == "" {
		h.ctrl.authState = "issued-state"
	}
	state := h.ctrl.authState
	h.ctrl.mu.Unlock()
	return h.ctrl.DeliverToken(context.Background(), state, token, expiresAt)
}

func stateOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Errorf("parse opened url: %v", err)
		return ""
	}
	return u.Query().Get("state")
}
