package query

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privata/internal/storage"
	dErrors "privata/pkg/domain-errors"
)

func TestBuilderCallsDoNotShareState(t *testing.T) {
	base := From("patient").Select("status").Where("status", storage.OpEq, "active")

	withName := base.Select("name").OrderBy("created_at", true)
	withEmail := base.Select("email")

	assert.Equal(t, []string{"status"}, base.Query().Select)
	assert.Equal(t, []string{"status", "name"}, withName.Query().Select)
	assert.Equal(t, []string{"status", "email"}, withEmail.Query().Select)
	assert.Empty(t, base.Query().Sort)
	assert.Len(t, withName.Query().Sort, 1)
}

func TestBuilderConcurrentReuse(t *testing.T) {
	base := From("patient").Select("status").Limit(10)
	var wg sync.WaitGroup
	results := make([][]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = base.Select("name").Query().Select
		}(i)
	}
	wg.Wait()
	for _, sel := range results {
		assert.Equal(t, []string{"status", "name"}, sel)
	}
	assert.Equal(t, []string{"status"}, base.Query().Select)
}

func TestOrIsDisjunction(t *testing.T) {
	b := From("patient").
		Where("status", storage.OpEq, "active").
		Where("age", storage.OpGte, 18).
		Or(storage.Eq("status", "vip"))
	where := b.Query().Where

	assert.True(t, where.Match(storage.Record{"status": "active", "age": 30}))
	assert.False(t, where.Match(storage.Record{"status": "active", "age": 12}))
	assert.True(t, where.Match(storage.Record{"status": "vip", "age": 12}))
	assert.False(t, where.Match(storage.Record{"status": "inactive", "age": 40}))
}

func TestOrOnEmptyFilterStartsIt(t *testing.T) {
	where := From("patient").Or(storage.Eq("status", "vip")).Query().Where
	assert.True(t, where.Match(storage.Record{"status": "vip"}))
	assert.False(t, where.Match(storage.Record{"status": "active"}))

	assert.True(t, From("patient").Or().Query().Where.IsZero())
}

func TestFieldsCoversEveryClause(t *testing.T) {
	b := From("patient").
		Select("name", "status").
		Where("email", storage.OpContains, "@").
		Or(storage.Eq("status", "vip")).
		OrderBy("diagnosis", false)
	assert.Equal(t, []string{"name", "status", "email", "diagnosis"}, b.Fields())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		builder Builder
		wantErr bool
	}{
		{"valid", From("patient").Limit(10).Offset(5), false},
		{"missing model", From(""), true},
		{"negative limit", From("patient").Limit(-1), true},
		{"limit too large", From("patient").Limit(maxLimit + 1), true},
		{"negative offset", From("patient").Offset(-1), true},
		{"empty sort field", From("patient").OrderBy("", false), true},
		{"bad operator", From("patient").Where("status", storage.Op("like"), "x"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}
