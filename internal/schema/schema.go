// Package schema classifies model fields by sensitivity. Every model that
// flows through the compliance gate must be registered first.
package schema

import (
	"maps"
	"slices"
	"sync"

	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/validation"
)

// Class is a field's sensitivity class.
type Class string

const (
	ClassPII      Class = "PII"
	ClassPHI      Class = "PHI"
	ClassMetadata Class = "METADATA"
)

// Sensitive reports whether the class holds personal data.
func (c Class) Sensitive() bool {
	return c == ClassPII || c == ClassPHI
}

// DefaultSubjectField names the field holding the data subject id when a
// schema does not set one.
const DefaultSubjectField = "subject_id"

// ModelSchema maps a model's field names to classes.
type ModelSchema struct {
	Name         string           `validate:"required,max=100"`
	SubjectField string           `validate:"omitempty,max=100"`
	Fields       map[string]Class `validate:"dive,keys,required,endkeys,oneof=PII PHI METADATA"`
}

// Class returns the class of field; unknown fields are metadata.
func (m ModelSchema) Class(field string) Class {
	if c, ok := m.Fields[field]; ok {
		return c
	}
	return ClassMetadata
}

// FieldsOf returns the sorted registered fields in any of classes.
func (m ModelSchema) FieldsOf(classes ...Class) []string {
	var out []string
	for f, c := range m.Fields {
		if slices.Contains(classes, c) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}

// AllFields returns every registered field, sorted.
func (m ModelSchema) AllFields() []string {
	return slices.Sorted(maps.Keys(m.Fields))
}

// SensitiveFields returns the PII and PHI fields, sorted.
func (m ModelSchema) SensitiveFields() []string {
	return m.FieldsOf(ClassPII, ClassPHI)
}

// Registry holds registered model schemas. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]ModelSchema)}
}

// Register validates and stores a copy of s. Re-registering a name
// overwrites the previous schema.
func (r *Registry) Register(s ModelSchema) error {
	if err := validation.Struct(s); err != nil {
		return err
	}
	if s.SubjectField == "" {
		s.SubjectField = DefaultSubjectField
	}
	s.Fields = maps.Clone(s.Fields)
	if s.Fields == nil {
		s.Fields = map[string]Class{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[s.Name] = s
	return nil
}

// Lookup returns the schema registered for model.
func (r *Registry) Lookup(model string) (ModelSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.models[model]
	if !ok {
		return ModelSchema{}, false
	}
	s.Fields = maps.Clone(s.Fields)
	return s, true
}

// MustLookup returns the schema for model or an unknown_model error.
func (r *Registry) MustLookup(model string) (ModelSchema, error) {
	s, ok := r.Lookup(model)
	if !ok {
		return ModelSchema{}, dErrors.New(dErrors.CodeUnknownModel, "model "+model+" is not registered")
	}
	return s, nil
}

// Models returns the registered model names, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.models))
}

// Classify maps each field to its class. Fields the schema does not name are
// metadata.
func (r *Registry) Classify(model string, fields []string) (map[string]Class, error) {
	r.mu.RLock()
	s, ok := r.models[model]
	r.mu.RUnlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownModel, "model "+model+" is not registered")
	}
	out := make(map[string]Class, len(fields))
	for _, f := range fields {
		out[f] = s.Class(f)
	}
	return out, nil
}
