package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "privata/pkg/domain-errors"
)

// TestParseSubjectID validates "subject ids are non-empty opaque strings".
//
// Justification: subject ids arrive from callers at trust boundaries and key
// consent, restriction and rights lookups.
func TestParseSubjectID(t *testing.T) {
	t.Run("accepts application-defined ids", func(t *testing.T) {
		id, err := ParseSubjectID("user-123")
		require.NoError(t, err)
		assert.Equal(t, SubjectID("user-123"), id)
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		id, err := ParseSubjectID("  user-123 ")
		require.NoError(t, err)
		assert.Equal(t, "user-123", id.String())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseSubjectID("   ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects oversized ids", func(t *testing.T) {
		_, err := ParseSubjectID(strings.Repeat("x", maxSubjectIDLength+1))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestParseUUIDIdentifiers(t *testing.T) {
	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRightsRequestID("not-a-uuid")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseConsentID(uuid.Nil.String())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round trips generated ids", func(t *testing.T) {
		id := NewRestrictionID()
		parsed, err := ParseRestrictionID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.False(t, parsed.IsNil())
	})
}
