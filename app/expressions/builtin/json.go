package builtin

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// BuiltinFunc are the helpers available to every rendered template.
var BuiltinFunc = map[string]interface{}{
	"json": builtinJSONFunction,
	"join": builtinJoinFunction,
	"date": builtinDateFunction,
}

func builtinJSONFunction(values ...interface{}) (interface{}, error) {
	if len(values) == 0 {
		return nil, errors.New("json requires a value")
	}
	output, err := json.Marshal(values[0])
	if err != nil {
		return nil, errors.New("invalid data")
	}
	return string(output), nil
}

func builtinJoinFunction(values []string, sep string) string {
	return strings.Join(values, sep)
}

// builtinDateFunction formats t with a Go layout, RFC 1123 by default.
func builtinDateFunction(t time.Time, layout ...string) string {
	if t.IsZero() {
		return ""
	}
	if len(layout) > 0 && layout[0] != "" {
		return t.Format(layout[0])
	}
	return t.Format(time.RFC1123)
}
