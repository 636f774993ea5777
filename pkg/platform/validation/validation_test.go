package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "privata/pkg/domain-errors"
)

type intake struct {
	SubjectID string `validate:"required,max=128"`
	Kind      string `validate:"required,oneof=access erasure"`
}

func TestStructPasses(t *testing.T) {
	assert.NoError(t, Struct(intake{SubjectID: "user-1", Kind: "access"}))
}

func TestStructReportsEveryField(t *testing.T) {
	err := Struct(intake{Kind: "delete"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "subjectid is required")
	assert.Contains(t, err.Error(), "kind must be one of [access erasure]")
}
