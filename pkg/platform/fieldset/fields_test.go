package fieldset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar"}, DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "}))
	assert.Empty(t, DedupeAndTrim(nil))
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"email", "name", "dob"}, Union([]string{"email", "name"}, []string{"name", "dob"}))
}
