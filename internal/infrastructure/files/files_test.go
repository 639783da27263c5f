package files

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/ports"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// minimalPDF builds a well-formed PDF with the given number of empty pages.
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		obj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestOpenSniffsMediaType(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content []byte
		want    string
	}{
		{"passport.pdf", minimalPDF(1), "application/pdf"},
		{"photo.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), "image/png"},
		{"notes.txt", []byte("transcript of records\n"), "text/plain"},
	}
	for _, tc := range cases {
		path := writeFile(t, dir, tc.name, tc.content)
		file, err := Open(path)
		if err != nil {
			t.Fatalf("Open(%s) error = %v", tc.name, err)
		}
		if !strings.HasPrefix(file.MediaType, tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, file.MediaType)
		}
		if file.Name != tc.name || file.Size != int64(len(tc.content)) {
			t.Fatalf("%s: unexpected handle %+v", tc.name, file)
		}

		rc, err := file.Open()
		if err != nil {
			t.Fatalf("reopen %s: %v", tc.name, err)
		}
		raw, _ := io.ReadAll(rc)
		_ = rc.Close()
		if !bytes.Equal(raw, tc.content) {
			t.Fatalf("%s: content mismatch", tc.name)
		}
	}
}

func TestOpenRejectsDirectoriesAndMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for directory, got %v", err)
	}
	if _, err := Open(filepath.Join(dir, "missing.pdf")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing file, got %v", err)
	}
}

func TestExpandAndOpenAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", []byte("b"))
	writeFile(t, dir, "a.txt", []byte("a"))

	paths, err := Expand([]string{filepath.Join(dir, "*.txt"), filepath.Join(dir, "a.txt"), filepath.Join(dir, "nope.pdf")})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 de-duplicated paths, got %v", paths)
	}

	opened, err := OpenAll(paths)
	if len(opened) != 2 {
		t.Fatalf("expected 2 opened files, got %d", len(opened))
	}
	if err == nil || !strings.Contains(err.Error(), "nope.pdf") {
		t.Fatalf("expected joined error naming the missing file, got %v", err)
	}
}

func TestPDFInspectorCountsPages(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "transcript.pdf", minimalPDF(3))
	file, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	pages, err := NewPDFInspector().PageCount(file)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
}

func TestPDFInspectorFromStream(t *testing.T) {
	content := minimalPDF(2)
	file := ports.UploadFile{
		Name: "stream.pdf",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
	pages, err := NewPDFInspector().PageCount(file)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if pages != 2 {
		t.Fatalf("expected 2 pages, got %d", pages)
	}
}

func TestPDFInspectorRejectsGarbage(t *testing.T) {
	file := ports.UploadFile{
		Name: "fake.pdf",
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("not a pdf")), nil
		},
	}
	if _, err := NewPDFInspector().PageCount(file); err == nil {
		t.Fatalf("expected parse error")
	}
}
