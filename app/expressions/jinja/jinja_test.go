package jinja

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	asserter := assert.New(t)
	data := map[string]interface{}{
		"Items": []map[string]interface{}{
			{"Title": "Approve", "Comment": "fine"},
			{"Title": "Submit", "Comment": ""},
		},
	}

	tpl := "{% for item in Items %}{{ item.Title }}{% if item.Comment %}: {{ item.Comment }}{% endif %};{% endfor %}"
	result, err := Render(tpl, data)
	if asserter.NoError(err) {
		asserter.Equal("Approve: fine;Submit;", result)
	}
}

func TestRenderBuiltin(t *testing.T) {
	asserter := assert.New(t)
	data := map[string]interface{}{
		"Names": []string{"a", "b"},
		"When":  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	result, err := Render(`{{ join(Names, ",") }} {{ date(When, "2006-01-02") }}`, data)
	if asserter.NoError(err) {
		asserter.Equal("a,b 2024-05-01", result)
	}
}

func TestRenderInvalid(t *testing.T) {
	asserter := assert.New(t)

	_, err := Render("{% for %}", nil)
	asserter.Error(err)
}
