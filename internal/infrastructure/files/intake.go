// Package files turns local paths into upload handles with sniffed media types.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/ports"
)

// Open stats path and sniffs its content type. The returned handle reopens
// the file for every read so uploads can be retried.
func Open(path string) (ports.UploadFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ports.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "open file", err)
	}
	if info.IsDir() {
		return ports.UploadFile{}, domain.WrapError(domain.ErrInvalidInput, "open file", fmt.Errorf("%s is a directory", path))
	}

	mediaType := ""
	if detected, err := mimetype.DetectFile(path); err == nil {
		mediaType = detected.String()
	}

	return ports.UploadFile{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Expand resolves glob patterns into a sorted, de-duplicated path list.
// Patterns without meta characters are kept even when they do not exist so
// Open can report them.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "expand paths", err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// OpenAll opens every path, collecting per-path failures instead of stopping.
func OpenAll(paths []string) ([]ports.UploadFile, error) {
	var (
		out  []ports.UploadFile
		errs []error
	)
	for _, p := range paths {
		f, err := Open(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, f)
	}
	return out, errors.Join(errs...)
}
