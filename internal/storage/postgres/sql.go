package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"privata/internal/storage"
	"privata/pkg/domain"
)

// builder accumulates positional arguments. Field names are always bound
// as parameters, never interpolated.
type builder struct {
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func buildSelect(region domain.Region, q storage.Query) (string, []any, error) {
	b := &builder{}
	var sb strings.Builder
	sb.WriteString("SELECT id, data FROM records WHERE model = ")
	sb.WriteString(b.bind(q.Model))
	sb.WriteString(" AND region = ")
	sb.WriteString(b.bind(string(region)))

	if !q.Where.IsZero() {
		cond, err := b.filter(q.Where)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}

	sb.WriteString(" ORDER BY ")
	for _, s := range q.Sort {
		sb.WriteString("data -> ")
		sb.WriteString(b.bind(s.Field))
		if s.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", ")
	}
	sb.WriteString("id")

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.bind(q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(b.bind(q.Offset))
	}
	return sb.String(), b.args, nil
}

func (b *builder) filter(f storage.Filter) (string, error) {
	var parts []string
	if f.Field != "" {
		c, err := b.cond(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, c)
	}
	for _, c := range f.And {
		s, err := b.filter(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(f.Or) > 0 {
		ors := make([]string, 0, len(f.Or))
		for _, c := range f.Or {
			s, err := b.filter(c)
			if err != nil {
				return "", err
			}
			ors = append(ors, s)
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	if len(parts) == 0 {
		return "TRUE", nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (b *builder) cond(f storage.Filter) (string, error) {
	field := b.bind(f.Field)
	switch f.Op {
	case storage.OpEq, storage.OpNe:
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return "", err
		}
		if f.Op == storage.OpEq {
			return fmt.Sprintf("data -> %s = %s::text::jsonb", field, b.bind(string(raw))), nil
		}
		return fmt.Sprintf("(data -> %s IS DISTINCT FROM %s::text::jsonb)", field, b.bind(string(raw))), nil
	case storage.OpIn:
		values, ok := f.Value.([]any)
		if !ok {
			values = anySlice(f.Value)
		}
		encoded := make([]string, 0, len(values))
		for _, v := range values {
			raw, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			encoded = append(encoded, string(raw))
		}
		return fmt.Sprintf("data -> %s = ANY(%s::text[]::jsonb[])", field, b.bind(encoded)), nil
	case storage.OpContains:
		raw, err := json.Marshal([]any{f.Value})
		if err != nil {
			return "", err
		}
		needle := fmt.Sprint(f.Value)
		return fmt.Sprintf(
			"(CASE WHEN jsonb_typeof(data -> %[1]s) = 'array' THEN data -> %[1]s @> %[2]s::text::jsonb ELSE strpos(data ->> %[1]s, %[3]s) > 0 END)",
			field, b.bind(string(raw)), b.bind(needle),
		), nil
	case storage.OpGt, storage.OpGte, storage.OpLt, storage.OpLte:
		op := map[storage.Op]string{storage.OpGt: ">", storage.OpGte: ">=", storage.OpLt: "<", storage.OpLte: "<="}[f.Op]
		if isNumber(f.Value) {
			return fmt.Sprintf(
				"(jsonb_typeof(data -> %s) = 'number' AND (data ->> %s)::numeric %s %s)",
				field, field, op, b.bind(f.Value),
			), nil
		}
		return fmt.Sprintf("data ->> %s %s %s", field, op, b.bind(fmt.Sprint(textValue(f.Value)))), nil
	}
	return "", fmt.Errorf("unsupported operator %q", f.Op)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64, uint, uint32, uint64:
		return true
	}
	return false
}

// textValue renders times the way encoding/json stores them.
func textValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return v
}

func anySlice(v any) []any {
	switch s := v.(type) {
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	}
	return nil
}
