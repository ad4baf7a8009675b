package gormx

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

func scan(s interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:

		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", v))
	}
}

func value(s interface{}) (driver.Value, error) {
	v := reflect.ValueOf(s)
	if v.IsZero() {
		return nil, nil
	}
	result, err := json.Marshal(s)
	return string(result), err
}

// SliceString stores a list of ids (users, groups) as a JSON array.
type SliceString []string

func (s *SliceString) Scan(value interface{}) error {
	return scan(s, value)
}

func (s SliceString) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return value(s)
}

func (s SliceString) Has(v string) bool {
	for _, one := range s {
		if one == v {
			return true
		}
	}
	return false
}

type MapJson map[string]interface{}

func (s *MapJson) Scan(value interface{}) error {
	return scan(s, value)
}

func (s MapJson) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return value(s)
}

// String returns the value under key formatted as a string, or "" when absent.
func (s MapJson) String(key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

func (s MapJson) Clone() MapJson {
	if s == nil {
		return nil
	}
	c := make(MapJson, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}
