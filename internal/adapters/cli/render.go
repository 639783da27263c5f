// Package cli is the terminal front end: a line-oriented REPL that drives the
// session controller and renders its snapshots.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/usecase"
	"github.com/kirillkom/docassist/internal/core/view"
)

// Renderer serializes writes so notices from upload goroutines never
// interleave with a result being printed.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer

	title   func(a ...any) string
	accent  func(a ...any) string
	good    func(a ...any) string
	warn    func(a ...any) string
	bad     func(a ...any) string
	subtle  func(a ...any) string
	infoTag func(a ...any) string
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out:     out,
		title:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		accent:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		good:    color.New(color.FgGreen).SprintFunc(),
		warn:    color.New(color.FgYellow).SprintFunc(),
		bad:     color.New(color.FgRed).SprintFunc(),
		subtle:  color.New(color.Faint).SprintFunc(),
		infoTag: color.New(color.FgCyan).SprintFunc(),
	}
}

func (r *Renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, s)
}

func (r *Renderer) Welcome() {
	r.printf("%s\n", r.title("Document Assistant"))
	r.printf("Type %s for the list of commands.\n\n", r.accent("help"))
}

func (r *Renderer) Prompt() {
	r.write(r.title("docassist> "))
}

func (r *Renderer) Help() {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-28s %s\n", c.usage, c.summary)
	}
	fmt.Fprintf(&b, "Example kinds: %s\n", strings.Join(usecase.ExampleKinds(), ", "))
	r.write(b.String())
}

func (r *Renderer) Notice(n domain.Notice) {
	var tag string
	switch n.Level {
	case domain.NoticeSuccess:
		tag = r.good("[ok]")
	case domain.NoticeWarning:
		tag = r.warn("[warn]")
	case domain.NoticeError:
		tag = r.bad("[error]")
	default:
		tag = r.infoTag("[info]")
	}
	r.printf("%s %s\n", tag, n.Message)
}

func (r *Renderer) Error(err error) {
	r.printf("%s %s\n", r.bad("[error]"), err.Error())
}

func (r *Renderer) Line(format string, args ...any) {
	r.printf(format+"\n", args...)
}

func (r *Renderer) BatchReport(report domain.BatchReport) {
	var b strings.Builder
	fmt.Fprintf(&b, "Accepted %d, uploaded %d, failed %d", len(report.Accepted), report.Succeeded, report.Failed)
	if len(report.Rejected) > 0 {
		fmt.Fprintf(&b, ", rejected %d", len(report.Rejected))
	}
	b.WriteString("\n")
	for _, rej := range report.Rejected {
		fmt.Fprintf(&b, "  %s %s: %s\n", r.bad("x"), rej.Name, rej.Reason)
	}
	r.write(b.String())
}

func (r *Renderer) Status(s domain.Snapshot) {
	var b strings.Builder
	backend := r.subtle("unknown")
	if s.BackendReachable != nil {
		if *s.BackendReachable {
			backend = r.good("reachable")
		} else {
			backend = r.bad("unreachable")
		}
	}
	fmt.Fprintf(&b, "Backend: %s\n", backend)
	switch {
	case s.Connected && s.MockConnection:
		fmt.Fprintf(&b, "Account: %s since %s\n", r.warn("connected (mock, testing only)"), s.ConnectedAt.Local().Format("15:04"))
	case s.Connected:
		fmt.Fprintf(&b, "Account: %s since %s\n", r.good("connected"), s.ConnectedAt.Local().Format("15:04"))
	default:
		fmt.Fprintf(&b, "Account: %s\n", r.subtle("not connected"))
	}
	if s.Demo {
		fmt.Fprintf(&b, "Mode: %s\n", r.warn("demo, sample documents"))
	}
	fmt.Fprintf(&b, "State: %s\n", s.State)
	if s.CurrentQuery != "" {
		fmt.Fprintf(&b, "Last query: %s\n", s.CurrentQuery)
	}
	if s.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", r.bad(s.LastError))
	}
	r.write(b.String())
	r.Documents(s)
}

func (r *Renderer) Documents(s domain.Snapshot) {
	var b strings.Builder
	if len(s.Documents) == 0 {
		b.WriteString("No local documents.\n")
	} else {
		fmt.Fprintf(&b, "Local documents (%d uploaded):\n", s.UploadedCount())
		for i, d := range s.Documents {
			fmt.Fprintf(&b, "  %d. %s  %s  %s", i+1, d.Name, usecase.FormatBytes(d.Size), r.status(d.Status))
			if d.Pages > 0 {
				fmt.Fprintf(&b, "  %d page(s)", d.Pages)
			}
			if d.Demo {
				fmt.Fprintf(&b, "  %s", r.warn("demo"))
			}
			if d.Error != "" {
				fmt.Fprintf(&b, "  %s", r.bad(d.Error))
			}
			b.WriteString("\n")
		}
	}
	if len(s.RemoteFiles) > 0 {
		fmt.Fprintf(&b, "Files on the server (%d):\n", len(s.RemoteFiles))
		for _, f := range s.RemoteFiles {
			fmt.Fprintf(&b, "  - %s", f.Name)
			if f.Category != "" {
				fmt.Fprintf(&b, " [%s]", f.Category)
			}
			if f.FileSize > 0 {
				fmt.Fprintf(&b, "  %s", usecase.FormatBytes(f.FileSize))
			}
			b.WriteString("\n")
		}
	}
	r.write(b.String())
}

func (r *Renderer) status(s domain.UploadStatus) string {
	switch s {
	case domain.UploadUploaded:
		return r.good(string(s))
	case domain.UploadFailed:
		return r.bad(string(s))
	default:
		return r.warn(string(s))
	}
}

func (r *Renderer) Result(v view.Result) {
	var b strings.Builder
	if v.Banner != "" {
		fmt.Fprintf(&b, "%s\n", r.warn(v.Banner))
	}
	if v.UseCase != "" {
		fmt.Fprintf(&b, "%s %s\n", r.accent("Use case:"), v.UseCase)
	}
	fmt.Fprintf(&b, "%s %d%% (%s)\n", r.accent("Completion:"), v.CompletionPercent, v.Readiness)
	if v.TotalAnalyzed > 0 {
		fmt.Fprintf(&b, "Documents analyzed: %d\n", v.TotalAnalyzed)
	}

	if len(v.Requirements) > 0 {
		b.WriteString("Required:")
		for _, req := range v.Requirements {
			if req.Found {
				fmt.Fprintf(&b, " %s", r.good("["+req.Label+"]"))
			} else {
				fmt.Fprintf(&b, " %s", r.bad("["+req.Label+"]"))
			}
		}
		b.WriteString("\n")
	}

	if len(v.Found) > 0 {
		b.WriteString(r.accent("Found:") + "\n")
		for _, m := range v.Found {
			fmt.Fprintf(&b, "  %s %s", r.good("+"), m.Label)
			if m.Filename != "" {
				fmt.Fprintf(&b, "  %s", m.Filename)
			}
			if m.ConfidencePct > 0 {
				fmt.Fprintf(&b, " (%d%%)", m.ConfidencePct)
			}
			b.WriteString("\n")
			for _, f := range m.Files {
				fmt.Fprintf(&b, "      %s\n", r.subtle(f.Name))
			}
		}
	}

	if len(v.Missing) > 0 {
		b.WriteString(r.accent("Missing:") + "\n")
		for _, m := range v.Missing {
			fmt.Fprintf(&b, "  %s %s\n", r.bad("-"), m.Label)
		}
	}

	for _, g := range v.Guidance {
		fmt.Fprintf(&b, "%s %s\n", r.accent("How to get"), g.Label)
		for _, field := range [][2]string{{"Where", g.Where}, {"Time", g.Time}, {"Cost", g.Cost}, {"Tips", g.Tips}} {
			if field[1] != "" {
				fmt.Fprintf(&b, "    %s: %s\n", field[0], field[1])
			}
		}
	}

	if v.Summary != "" {
		fmt.Fprintf(&b, "%s %s\n", r.accent("Summary:"), v.Summary)
	}
	if v.Advice != "" {
		fmt.Fprintf(&b, "%s %s\n", r.accent("Advice:"), v.Advice)
	}
	if len(v.NextSteps) > 0 {
		b.WriteString(r.accent("Next steps:") + "\n")
		for i, step := range v.NextSteps {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}
	r.write(b.String())
}

// Notifier adapts the renderer to ports.Notifier.
type Notifier struct {
	r *Renderer
}

func NewNotifier(r *Renderer) *Notifier {
	return &Notifier{r: r}
}

func (n *Notifier) Notify(notice domain.Notice) {
	n.r.Notice(notice)
}
