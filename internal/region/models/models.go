package models

import (
	"time"

	"privata/pkg/domain"
)

// Source names the signal a region was resolved from.
type Source string

const (
	SourceMapping        Source = "mapping"
	SourceData           Source = "data"
	SourceIP             Source = "ip"
	SourceAcceptLanguage Source = "accept_language"
)

// RequestMeta is the request-level evidence available to the router.
type RequestMeta struct {
	IP             string
	AcceptLanguage string
}

// Input carries every signal the router may use. Any part may be empty.
type Input struct {
	SubjectID domain.SubjectID
	Data      map[string]any
	Request   RequestMeta
}

// Resolution is the router's answer and the signal that produced it.
type Resolution struct {
	Region  domain.Region
	Source  Source
	Country string
}

// Mapping is the recorded subject-to-region assignment.
type Mapping struct {
	SubjectID  domain.SubjectID
	Region     domain.Region
	RecordedAt time.Time
}
