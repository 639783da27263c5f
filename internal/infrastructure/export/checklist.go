package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/docassist/internal/core/view"
)

type Format string

const (
	FormatXLSX      Format = "xlsx"
	FormatChecklist Format = "txt"
)

// WriteChecklist renders a plain-text checklist with a box per required
// document and the guidance for the missing ones.
func WriteChecklist(w io.Writer, result view.Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Document checklist: %s\n", firstNonEmpty(result.UseCase, result.Query))
	if result.Query != "" {
		fmt.Fprintf(bw, "Query: %s\n", result.Query)
	}
	fmt.Fprintf(bw, "Completion: %d%% (%s)\n\n", result.CompletionPercent, result.Readiness)

	items := result.Requirements
	if len(items) == 0 {
		for _, m := range result.Found {
			items = append(items, view.Requirement{Type: m.Type, Label: m.Label, Found: true})
		}
		items = append(items, result.Missing...)
	}
	for _, item := range items {
		box := "[ ]"
		if item.Found {
			box = "[x]"
		}
		fmt.Fprintf(bw, "%s %s\n", box, item.Label)
	}

	if len(result.Guidance) > 0 {
		bw.WriteString("\nHow to get missing documents\n")
		for _, g := range result.Guidance {
			fmt.Fprintf(bw, "\n%s\n", g.Label)
			writeDetail(bw, "Where", g.Where)
			writeDetail(bw, "Time", g.Time)
			writeDetail(bw, "Cost", g.Cost)
			writeDetail(bw, "Tips", g.Tips)
		}
	}

	if len(result.NextSteps) > 0 {
		bw.WriteString("\nNext steps\n")
		for i, step := range result.NextSteps {
			fmt.Fprintf(bw, "%d. %s\n", i+1, step)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write checklist: %w", err)
	}
	return nil
}

// WriteFile renders result into dir and returns the created path.
func WriteFile(dir string, format Format, result view.Result, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	var render func(io.Writer, view.Result) error
	switch format {
	case FormatXLSX:
		render = WriteXLSX
	case FormatChecklist:
		render = WriteChecklist
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	path := filepath.Join(dir, Filename(result, format, now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := render(f, result); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

func Filename(result view.Result, format Format, now time.Time) string {
	base := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(result.UseCase), "-"), "-")
	if base == "" {
		base = "documents"
	}
	return fmt.Sprintf("%s-%s.%s", base, now.UTC().Format("20060102-150405"), format)
}

func writeDetail(w *bufio.Writer, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(w, "  %s: %s\n", label, value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "analysis"
}
