package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/ports"
	"github.com/kirillkom/docassist/internal/core/usecase"
	"github.com/kirillkom/docassist/internal/core/view"
	"github.com/kirillkom/docassist/internal/infrastructure/export"
)

type command struct {
	name    string
	aliases []string
	usage   string
	summary string
	run     func(r *REPL, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "help", aliases: []string{"?"}, usage: "help", summary: "show this list", run: (*REPL).help},
		{name: "upload", usage: "upload <path|glob>...", summary: "upload local files", run: (*REPL).upload},
		{name: "files", usage: "files", summary: "refresh and list files", run: (*REPL).files},
		{name: "connect", usage: "connect [mock]", summary: "connect the external document account", run: (*REPL).connect},
		{name: "cancel", usage: "cancel", summary: "stop waiting for a pending connection", run: (*REPL).cancel},
		{name: "disconnect", usage: "disconnect", summary: "forget the external account", run: (*REPL).disconnect},
		{name: "ask", aliases: []string{"analyze"}, usage: "ask <what you need documents for>", summary: "run an analysis", run: (*REPL).ask},
		{name: "example", usage: "example <kind>", summary: "run a canned query", run: (*REPL).example},
		{name: "demo", usage: "demo", summary: "load sample documents and analyze them", run: (*REPL).demo},
		{name: "status", usage: "status", summary: "show session and backend status", run: (*REPL).status},
		{name: "remove", usage: "remove <number|id>", summary: "remove a local document", run: (*REPL).remove},
		{name: "reset", usage: "reset", summary: "clear documents and the last result", run: (*REPL).reset},
		{name: "export", usage: "export [xlsx|txt]", summary: "save the last result", run: (*REPL).export},
		{name: "quit", aliases: []string{"exit"}, usage: "quit", summary: "leave", run: nil},
	}
}

// Intake turns user-supplied paths or globs into upload handles.
type Intake func(patterns []string) ([]ports.UploadFile, error)

type Deps struct {
	Session   ports.SessionController
	Renderer  *Renderer
	Intake    Intake
	ExportDir string
	// Demo runs the demo once before the first prompt.
	Demo   bool
	Logger *slog.Logger
	Now    func() time.Time
}

type REPL struct {
	session   ports.SessionController
	render    *Renderer
	intake    Intake
	exportDir string
	demoFirst bool
	logger    *slog.Logger
	now       func() time.Time

	mu            sync.Mutex
	connectCancel context.CancelFunc
	connectDone   chan struct{}
}

func NewREPL(deps Deps) *REPL {
	r := &REPL{
		session:   deps.Session,
		render:    deps.Renderer,
		intake:    deps.Intake,
		exportDir: deps.ExportDir,
		demoFirst: deps.Demo,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run reads commands from in until EOF, quit, or ctx is done. A pending
// connection attempt is stopped before it returns.
func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	defer r.stopConnect()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	r.render.Welcome()
	if r.demoFirst {
		r.Execute(ctx, "demo")
	}
	for {
		r.render.Prompt()
		select {
		case <-ctx.Done():
			r.render.Line("")
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				r.render.Line("")
				return nil
			}
			if quit := r.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the user asked to quit.
func (r *REPL) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	cmd, ok := lookup(name)
	if !ok {
		r.render.Line("Unknown command %q. Type help for the list of commands.", name)
		return false
	}
	if cmd.run == nil {
		return true
	}
	if err := cmd.run(r, ctx, fields[1:]); err != nil && !notified(err) {
		r.logger.Debug("command_failed", "command", cmd.name, "error", err)
		r.render.Error(err)
	}
	return false
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
		for _, alias := range c.aliases {
			if alias == name {
				return c, true
			}
		}
	}
	return command{}, false
}

// notified reports errors the session already surfaced as a notice.
func notified(err error) bool {
	var backendErr *domain.BackendError
	return errors.As(err, &backendErr) ||
		domain.IsKind(err, domain.ErrNetwork) ||
		domain.IsKind(err, domain.ErrNoDocumentSource)
}

func (r *REPL) help(context.Context, []string) error {
	r.render.Help()
	return nil
}

func (r *REPL) upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: upload <path|glob>...")
	}
	files, err := r.intake(args)
	if err != nil {
		r.render.Error(err)
	}
	if len(files) == 0 {
		return nil
	}
	report, err := r.session.SubmitFiles(ctx, files)
	r.render.BatchReport(report)
	return err
}

func (r *REPL) files(ctx context.Context, _ []string) error {
	if err := r.session.RefreshFiles(ctx); err != nil {
		r.render.Error(err)
	}
	r.render.Documents(r.session.Snapshot())
	return nil
}

// connect waits for the authorization in the background so other commands
// stay usable; the outcome arrives as a notice.
func (r *REPL) connect(ctx context.Context, args []string) error {
	if len(args) > 0 {
		if strings.ToLower(args[0]) != "mock" {
			return errors.New("usage: connect [mock]")
		}
		return r.session.ConnectMockAccount(ctx)
	}

	r.mu.Lock()
	if r.connectCancel != nil {
		r.mu.Unlock()
		return errors.New("a connection attempt is already running, type cancel to stop it")
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.connectCancel, r.connectDone = cancel, done
	r.mu.Unlock()

	r.render.Line("Opening the authorization page in your browser. Type cancel to stop waiting.")
	go func() {
		defer close(done)
		defer cancel()
		outcome, err := r.session.ConnectExternalAccount(attemptCtx)
		if outcome == domain.ConnectFailed && err != nil && !notified(err) {
			r.logger.Debug("command_failed", "command", "connect", "error", err)
			r.render.Error(err)
		}
		r.mu.Lock()
		if r.connectDone == done {
			r.connectCancel, r.connectDone = nil, nil
		}
		r.mu.Unlock()
	}()
	return nil
}

func (r *REPL) cancel(context.Context, []string) error {
	if !r.stopConnect() {
		r.render.Line("No connection attempt is running.")
	}
	return nil
}

// stopConnect cancels a pending attempt and waits for it to settle. It
// reports whether one was running.
func (r *REPL) stopConnect() bool {
	r.mu.Lock()
	cancel, done := r.connectCancel, r.connectDone
	r.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (r *REPL) disconnect(context.Context, []string) error {
	r.session.DisconnectExternalAccount()
	return nil
}

func (r *REPL) ask(ctx context.Context, args []string) error {
	return r.runQuery(ctx, strings.Join(args, " "))
}

func (r *REPL) example(ctx context.Context, args []string) error {
	kind := "university"
	if len(args) > 0 {
		kind = strings.ToLower(args[0])
	}
	query, ok := usecase.ExampleQuery(kind)
	if !ok {
		r.render.Line("Unknown example %q, using university.", kind)
	}
	r.render.Line("Query: %s", query)
	return r.runQuery(ctx, query)
}

func (r *REPL) demo(ctx context.Context, _ []string) error {
	r.render.Line("Loading sample documents and analyzing them...")
	result, err := r.session.RunDemo(ctx)
	if result != nil {
		r.render.Result(view.BuildResult(*result))
	}
	return err
}

func (r *REPL) runQuery(ctx context.Context, text string) error {
	if strings.TrimSpace(text) != "" {
		r.render.Line("Analyzing...")
	}
	result, err := r.session.SubmitQuery(ctx, text)
	if result != nil {
		r.render.Result(view.BuildResult(*result))
	}
	if domain.IsKind(err, domain.ErrInvalidInput) && strings.TrimSpace(text) == "" {
		return nil
	}
	return err
}

func (r *REPL) status(ctx context.Context, _ []string) error {
	r.session.CheckBackend(ctx)
	r.render.Status(r.session.Snapshot())
	return nil
}

func (r *REPL) remove(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: remove <number|id>")
	}
	id := args[0]
	if n, err := strconv.Atoi(id); err == nil {
		docs := r.session.Snapshot().Documents
		if n < 1 || n > len(docs) {
			return fmt.Errorf("no document number %d", n)
		}
		id = docs[n-1].ID
	}
	if err := r.session.RemoveDocument(id); err != nil {
		return err
	}
	r.render.Line("Removed.")
	return nil
}

func (r *REPL) reset(context.Context, []string) error {
	r.session.Reset()
	r.render.Line("Session cleared.")
	return nil
}

func (r *REPL) export(_ context.Context, args []string) error {
	format := export.FormatXLSX
	if len(args) > 0 {
		format = export.Format(strings.ToLower(args[0]))
	}
	snap := r.session.Snapshot()
	if snap.Result == nil {
		return errors.New("nothing to export yet, run an analysis first")
	}
	path, err := export.WriteFile(r.exportDir, format, view.BuildResult(*snap.Result), r.now())
	if err != nil {
		return err
	}
	r.render.Line("Saved %s", path)
	return nil
}
