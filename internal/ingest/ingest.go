package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/xuri/excelize/v2"

	"github.com/tablechat/tablechat/internal/domain"
)

// Options configures the ingestor.
type Options struct {
	MaxFileBytes      int64
	AllowedExtensions []string
	SpoolDir          string // empty = OS temp dir
}

// Ingestor parses uploaded tabular files into ordered records.
//
// Parsers want a file on disk, so the payload is spooled to a transient file
// that is removed on every exit path.
type Ingestor struct {
	maxBytes int64
	allowed  map[string]struct{}
	spoolDir string
}

// New creates an ingestor.
func New(opts Options) *Ingestor {
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &Ingestor{
		maxBytes: opts.MaxFileBytes,
		allowed:  allowed,
		spoolDir: opts.SpoolDir,
	}
}

// AllowedExtension reports whether the extension of filename is in the allow-list.
func (ing *Ingestor) AllowedExtension(filename string) bool {
	_, ok := ing.allowed[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Ingest validates and parses the payload into an ordered record sequence.
func (ing *Ingestor) Ingest(ctx context.Context, filename string, data []byte) ([]domain.Record, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := ing.allowed[ext]; !ok {
		return nil, fmt.Errorf("extension %q: %w", ext, domain.ErrUnsupportedFormat)
	}
	if int64(len(data)) > ing.maxBytes {
		return nil, fmt.Errorf("%d bytes exceeds limit of %d: %w", len(data), ing.maxBytes, domain.ErrPayloadTooLarge)
	}

	spoolPath, err := ing.spool(data, ext)
	if err != nil {
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	defer os.Remove(spoolPath)

	switch ext {
	case ".csv":
		return parseCSV(ctx, spoolPath)
	default: // .xlsx, .xls — validated against the allow-list above
		return parseSpreadsheet(ctx, spoolPath)
	}
}

// spool writes the payload to a transient file with the original extension,
// since the spreadsheet parser detects format by suffix.
func (ing *Ingestor) spool(data []byte, ext string) (string, error) {
	f, err := os.CreateTemp(ing.spoolDir, "tablechat-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// parseCSV loads one record per data row, each row rendered as
// "column: value" lines by the loader.
func parseCSV(ctx context.Context, path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	docs, err := documentloaders.NewCSV(f).Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("decode csv: %w: %v", domain.ErrParse, err)
	}

	records := make([]domain.Record, 0, len(docs))
	for i, doc := range docs {
		text := strings.TrimSpace(doc.PageContent)
		if text == "" {
			continue
		}
		records = append(records, domain.Record{
			Text:   text,
			Source: "csv",
			Row:    i + 1,
		})
	}
	return records, nil
}

// parseSpreadsheet loads one record per non-empty row across all sheets,
// pairing each cell with its column header.
func parseSpreadsheet(ctx context.Context, path string) ([]domain.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("decode spreadsheet: %w: %v", domain.ErrParse, err)
	}
	defer f.Close()

	var records []domain.Record
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w: %v", sheet, domain.ErrParse, err)
		}
		if len(rows) == 0 {
			continue
		}

		headers := rows[0]
		for i, row := range rows[1:] {
			text := renderRow(headers, row)
			if text == "" {
				continue
			}
			records = append(records, domain.Record{
				Text:   text,
				Source: sheet,
				Row:    i + 1,
			})
		}
	}
	return records, nil
}

// renderRow pairs cells with headers as "header: value" lines, mirroring the
// CSV loader format so chunks look the same regardless of source format.
func renderRow(headers, row []string) string {
	var b strings.Builder
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
			b.WriteString(strings.TrimSpace(headers[i]))
			b.WriteString(": ")
		}
		b.WriteString(cell)
	}
	return b.String()
}
