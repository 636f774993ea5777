package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"privata/internal/gate"
	"privata/internal/schema"
)

func TestScore(t *testing.T) {
	pii := map[string]schema.Class{"name": schema.ClassPII, "status": schema.ClassMetadata}
	phi := map[string]schema.Class{"diagnosis": schema.ClassPHI}
	both := map[string]schema.Class{"name": schema.ClassPII, "diagnosis": schema.ClassPHI}
	meta := map[string]schema.Class{"status": schema.ClassMetadata}

	tests := []struct {
		name           string
		mode           gate.Mode
		classes        map[string]schema.Class
		requireConsent bool
		want           int
	}{
		{"metadata strict clamps at 100", gate.ModeStrict, meta, false, 100},
		{"metadata relaxed", gate.ModeRelaxed, meta, false, 100},
		{"pii relaxed", gate.ModeRelaxed, pii, false, 90},
		{"phi relaxed", gate.ModeRelaxed, phi, false, 85},
		{"pii and phi relaxed", gate.ModeRelaxed, both, false, 75},
		{"pii and phi strict", gate.ModeStrict, both, false, 85},
		{"pii and phi with consent required", gate.ModeStrict, both, true, 100},
		{"disabled with pii and phi", gate.ModeDisabled, both, false, 25},
		{"disabled with consent required", gate.ModeDisabled, pii, true, 65},
		{"no fields", gate.ModeDisabled, nil, false, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.mode, tt.classes, tt.requireConsent))
		})
	}
}
