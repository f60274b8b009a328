package registry

import "github.com/jackc/pgx/v5"

// Row is one result row keyed by column name.
type Row map[string]any

// Int64 reads a numeric column, tolerating the integer widths pgx may
// hand back for counts and sums.
func (r Row) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

// Float64 reads a floating-point column.
func (r Row) Float64(column string) float64 {
	switch v := r[column].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// String reads a text column.
func (r Row) String(column string) string {
	if v, ok := r[column].(string); ok {
		return v
	}
	return ""
}

// CollectRows drains a pgx result set into generic rows. The caller still
// owns closing the source.
func CollectRows(rows pgx.Rows) ([]Row, error) {
	fields := rows.FieldDescriptions()

	out := make([]Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
