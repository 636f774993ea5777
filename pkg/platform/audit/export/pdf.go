package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	audit "privata/pkg/platform/audit"
)

type pdfColumn struct {
	title string
	width float64
	value func(audit.Event) string
}

var pdfColumns = []pdfColumn{
	{"Timestamp (UTC)", 38, func(e audit.Event) string { return e.Timestamp.UTC().Format("2006-01-02 15:04:05") }},
	{"Action", 52, func(e audit.Event) string { return string(e.Action) }},
	{"Entity", 45, func(e audit.Event) string { return joinNonEmpty(e.EntityType, e.EntityID) }},
	{"Subject", 40, func(e audit.Event) string { return e.SubjectID }},
	{"Actor", 35, func(e audit.Event) string { return e.UserID }},
	{"Region", 16, func(e audit.Event) string { return e.Region }},
	{"Framework", 20, func(e audit.Event) string { return string(e.Framework) }},
	{"Retain until", 24, func(e audit.Event) string { return e.RetentionDate.UTC().Format("2006-01-02") }},
}

// pdfEncoder renders a landscape table. gofpdf assembles the document in
// memory and writes it out on end.
type pdfEncoder struct {
	w     io.Writer
	title string
	pdf   *gofpdf.Fpdf
	rows  int
}

func newPDFEncoder(w io.Writer, title string) *pdfEncoder {
	if title == "" {
		title = "Audit trail export"
	}
	return &pdfEncoder{w: w, title: title}
}

func (e *pdfEncoder) begin() error {
	e.pdf = gofpdf.New("L", "mm", "A4", "")
	e.pdf.SetAutoPageBreak(true, 12)
	e.pdf.SetHeaderFunc(e.header)
	e.pdf.AddPage()
	return e.pdf.Error()
}

func (e *pdfEncoder) header() {
	e.pdf.SetFont("Helvetica", "B", 14)
	e.pdf.Cell(0, 10, e.title)
	e.pdf.Ln(8)
	e.pdf.SetFont("Helvetica", "", 8)
	e.pdf.Cell(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)))
	e.pdf.Ln(8)
	e.pdf.SetFont("Helvetica", "B", 8)
	for _, c := range pdfColumns {
		e.pdf.CellFormat(c.width, 6, c.title, "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.pdf.SetFont("Helvetica", "", 7)
}

func (e *pdfEncoder) write(ev audit.Event) error {
	for _, c := range pdfColumns {
		e.pdf.CellFormat(c.width, 5, truncate(c.value(ev), c.width), "1", 0, "L", false, 0, "")
	}
	e.pdf.Ln(-1)
	e.rows++
	return e.pdf.Error()
}

func (e *pdfEncoder) end() error {
	e.pdf.Ln(4)
	e.pdf.SetFont("Helvetica", "I", 8)
	e.pdf.Cell(0, 6, fmt.Sprintf("%d events", e.rows))
	return e.pdf.Output(e.w)
}

// truncate keeps a cell on one line; about 1.1 characters fit per mm at 7pt.
func truncate(s string, width float64) string {
	maxChars := int(width * 1.1)
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars-1] + "~"
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "/" + b
}
