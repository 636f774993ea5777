package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"time"

	audit "privata/pkg/platform/audit"
)

// jsonEncoder writes a single JSON array without buffering the whole set.
type jsonEncoder struct {
	w     io.Writer
	count int
}

func (e *jsonEncoder) begin() error {
	_, err := io.WriteString(e.w, "[")
	return err
}

func (e *jsonEncoder) write(ev audit.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if e.count > 0 {
		if _, err := io.WriteString(e.w, ","); err != nil {
			return err
		}
	}
	e.count++
	_, err = e.w.Write(b)
	return err
}

func (e *jsonEncoder) end() error {
	_, err := io.WriteString(e.w, "]")
	return err
}

var csvHeader = []string{
	"id", "timestamp", "action", "entity_type", "entity_id", "subject_id", "user_id",
	"region", "framework", "retention_date", "request_id", "details",
}

type csvEncoder struct {
	w *csv.Writer
}

func newCSVEncoder(w io.Writer) *csvEncoder {
	return &csvEncoder{w: csv.NewWriter(w)}
}

func (e *csvEncoder) begin() error {
	return e.w.Write(csvHeader)
}

func (e *csvEncoder) write(ev audit.Event) error {
	details, err := detailsJSON(ev.Details)
	if err != nil {
		return err
	}
	return e.w.Write([]string{
		ev.ID.String(),
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
		string(ev.Action),
		ev.EntityType,
		ev.EntityID,
		ev.SubjectID,
		ev.UserID,
		ev.Region,
		string(ev.Framework),
		ev.RetentionDate.UTC().Format(time.RFC3339),
		ev.RequestID,
		details,
	})
}

func (e *csvEncoder) end() error {
	e.w.Flush()
	return e.w.Error()
}

type xmlDetail struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlEvent struct {
	XMLName       xml.Name    `xml:"event"`
	ID            string      `xml:"id,attr"`
	Timestamp     string      `xml:"timestamp"`
	Action        string      `xml:"action"`
	EntityType    string      `xml:"entityType,omitempty"`
	EntityID      string      `xml:"entityId,omitempty"`
	SubjectID     string      `xml:"subjectId,omitempty"`
	UserID        string      `xml:"userId,omitempty"`
	Region        string      `xml:"region,omitempty"`
	Framework     string      `xml:"complianceFramework"`
	RetentionDate string      `xml:"retentionDate"`
	RequestID     string      `xml:"requestId,omitempty"`
	Details       []xmlDetail `xml:"details>detail,omitempty"`
}

type xmlEncoder struct {
	w   io.Writer
	enc *xml.Encoder
}

func newXMLEncoder(w io.Writer) *xmlEncoder {
	return &xmlEncoder{w: w, enc: xml.NewEncoder(w)}
}

var xmlRoot = xml.StartElement{Name: xml.Name{Local: "auditEvents"}}

func (e *xmlEncoder) begin() error {
	if _, err := io.WriteString(e.w, xml.Header); err != nil {
		return err
	}
	return e.enc.EncodeToken(xmlRoot)
}

func (e *xmlEncoder) write(ev audit.Event) error {
	x := xmlEvent{
		ID:            ev.ID.String(),
		Timestamp:     ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:        string(ev.Action),
		EntityType:    ev.EntityType,
		EntityID:      ev.EntityID,
		SubjectID:     ev.SubjectID,
		UserID:        ev.UserID,
		Region:        ev.Region,
		Framework:     string(ev.Framework),
		RetentionDate: ev.RetentionDate.UTC().Format(time.RFC3339),
		RequestID:     ev.RequestID,
	}
	for _, k := range sortedKeys(ev.Details) {
		x.Details = append(x.Details, xmlDetail{Key: k, Value: fmt.Sprint(ev.Details[k])})
	}
	return e.enc.Encode(x)
}

func (e *xmlEncoder) end() error {
	if err := e.enc.EncodeToken(xmlRoot.End()); err != nil {
		return err
	}
	return e.enc.Flush()
}

func detailsJSON(d map[string]any) (string, error) {
	if len(d) == 0 {
		return "", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
