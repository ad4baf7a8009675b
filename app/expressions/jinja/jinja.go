package jinja

import (
	"sync"

	"advflow/app/expressions/builtin"

	"github.com/flosch/pongo2/v4"
)

var (
	cacheMu sync.RWMutex
	cache   = map[string]*pongo2.Template{}
)

// Rendered output is mail text, not HTML.
func init() {
	pongo2.SetAutoescape(false)
}

// Compile parses src once and reuses the result for identical sources.
func Compile(src string) (*pongo2.Template, error) {
	cacheMu.RLock()
	tpl, ok := cache[src]
	cacheMu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := pongo2.FromString(src)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[src] = tpl
	cacheMu.Unlock()
	return tpl, nil
}

// Render executes src with data. Builtin helpers are available under their
// own names, data keys shadow them.
func Render(src string, data map[string]interface{}) (string, error) {
	tpl, err := Compile(src)
	if err != nil {
		return "", err
	}

	ctx := pongo2.Context{}
	for k, v := range builtin.BuiltinFunc {
		ctx[k] = v
	}
	for k, v := range data {
		ctx[k] = v
	}
	return tpl.Execute(ctx)
}
