package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRestrictionCovers(t *testing.T) {
	all := &Restriction{Scope: ScopeAllPersonalData, Active: true}
	specific := &Restriction{Scope: ScopeSpecificCategories, DataCategories: []string{"PHI", "email"}, Active: true}
	lifted := &Restriction{Scope: ScopeAllPersonalData, Active: false}

	tests := []struct {
		name  string
		r     *Restriction
		field string
		class string
		want  bool
	}{
		{"all data covers anything", all, "phone", "PII", true},
		{"class category", specific, "diagnosis", "PHI", true},
		{"field category", specific, "email", "PII", true},
		{"uncovered field", specific, "phone", "PII", false},
		{"inactive covers nothing", lifted, "phone", "PII", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Covers(tt.field, tt.class))
		})
	}
}

func TestRestrictionExcepts(t *testing.T) {
	r := &Restriction{Exceptions: []string{"vital_interests"}}
	assert.True(t, r.Excepts("vital_interests"))
	assert.False(t, r.Excepts("consent"))
	assert.False(t, r.Excepts(""))
}
