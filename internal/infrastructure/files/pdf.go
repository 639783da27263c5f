package files

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docassist/internal/core/ports"
)

const maxInspectBytes = 32 << 20

// PDFInspector reads page counts from PDF uploads.
type PDFInspector struct{}

func NewPDFInspector() *PDFInspector {
	return &PDFInspector{}
}

func (i *PDFInspector) PageCount(file ports.UploadFile) (int, error) {
	if file.Open == nil {
		return 0, fmt.Errorf("pdf inspect: file has no content source")
	}
	rc, err := file.Open()
	if err != nil {
		return 0, fmt.Errorf("pdf inspect open: %w", err)
	}
	defer rc.Close()

	readerAt, size, err := asReaderAt(rc, file.Size)
	if err != nil {
		return 0, err
	}
	reader, err := pdf.NewReader(readerAt, size)
	if err != nil {
		return 0, fmt.Errorf("pdf inspect parse: %w", err)
	}
	return reader.NumPage(), nil
}

func asReaderAt(rc io.Reader, size int64) (io.ReaderAt, int64, error) {
	if ra, ok := rc.(io.ReaderAt); ok && size > 0 {
		return ra, size, nil
	}
	raw, err := io.ReadAll(io.LimitReader(rc, maxInspectBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("pdf inspect read: %w", err)
	}
	if len(raw) > maxInspectBytes {
		return nil, 0, fmt.Errorf("pdf inspect: file exceeds %d bytes", maxInspectBytes)
	}
	return bytes.NewReader(raw), int64(len(raw)), nil
}
