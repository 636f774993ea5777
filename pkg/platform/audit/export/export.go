// Package export serializes audit events for regulators and auditors.
//
// Exports scroll the backing store one page at a time, so a store never hands
// more than audit.MaxPageSize events to the encoder at once regardless of how
// many events match.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	audit "privata/pkg/platform/audit"
)

// Format is an export serialization.
type Format string

const (
	FormatJSON Format = "JSON"
	FormatCSV  Format = "CSV"
	FormatXML  Format = "XML"
	FormatPDF  Format = "PDF"
)

// ParseFormat accepts any casing of a supported format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToUpper(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXML, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXML:
		return "application/xml"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Scanner is the read side of an audit store.
type Scanner interface {
	Scan(ctx context.Context, filter audit.Filter, page audit.Page) ([]audit.Event, string, error)
}

type encoder interface {
	begin() error
	write(e audit.Event) error
	end() error
}

// Options tune an export.
type Options struct {
	PageSize int
	Title    string
}

// Write streams every event matching filter to w in the requested format.
// It returns the number of events written.
func Write(ctx context.Context, w io.Writer, src Scanner, filter audit.Filter, format Format, opts Options) (int, error) {
	enc, err := newEncoder(w, format, opts)
	if err != nil {
		return 0, err
	}
	if err := enc.begin(); err != nil {
		return 0, err
	}

	page := audit.Page{Limit: opts.PageSize}
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		events, next, err := src.Scan(ctx, filter, page)
		if err != nil {
			return total, fmt.Errorf("scan audit page: %w", err)
		}
		for _, e := range events {
			if err := enc.write(e); err != nil {
				return total, fmt.Errorf("encode audit event %s: %w", e.ID, err)
			}
			total++
		}
		if next == "" {
			break
		}
		page.Cursor = next
	}
	return total, enc.end()
}

func newEncoder(w io.Writer, format Format, opts Options) (encoder, error) {
	switch format {
	case FormatJSON:
		return &jsonEncoder{w: w}, nil
	case FormatCSV:
		return newCSVEncoder(w), nil
	case FormatXML:
		return newXMLEncoder(w), nil
	case FormatPDF:
		return newPDFEncoder(w, opts.Title), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}
