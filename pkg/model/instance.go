package model

import (
	"fmt"
	"time"
)

// Instance is one database row, decoded column-by-column. Getters coerce the
// concrete types pgx produces (int32/int64, time.Time) to what callers need.
type Instance map[string]any

// ID returns the primary key, or 0.
func (in Instance) ID() int {
	return in.Int("id")
}

func (in Instance) Int(key string) int {
	switch v := in[key].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (in Instance) Str(key string) string {
	switch v := in[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (in Instance) Bool(key string) bool {
	v, _ := in[key].(bool)
	return v
}

// Time returns the value as a time pointer, nil when absent or NULL.
func (in Instance) Time(key string) *time.Time {
	switch v := in[key].(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	default:
		return nil
	}
}
