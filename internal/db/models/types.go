package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MetadataMap is a JSON-encoded key-value blob attached to users and
// organizations (Clerk public metadata, application settings).
type MetadataMap map[string]any

// Scan implements sql.Scanner for reading from database
func (m *MetadataMap) Scan(value any) error {
	if value == nil {
		*m = make(MetadataMap)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan MetadataMap: expected []byte or string, got %T", value)
	}
	if len(bytes) == 0 {
		*m = make(MetadataMap)
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// Value implements driver.Valuer for writing to database
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Merge returns a copy of m with patch shallow-merged on top,
// last-write-wins per key. Neither input is mutated.
func (m MetadataMap) Merge(patch MetadataMap) MetadataMap {
	merged := make(MetadataMap, len(m)+len(patch))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// StringList is a JSON-serialized list of strings, used for per-membership
// permission lists.
type StringList []string

// Scan implements sql.Scanner for reading from database
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan StringList: expected []byte or string, got %T", value)
	}
	if len(bytes) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// Value implements driver.Valuer for writing to database
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Contains reports whether s is an element of the list (exact match).
func (l StringList) Contains(s string) bool {
	for _, item := range l {
		if item == s {
			return true
		}
	}
	return false
}
