package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_ReplacesKnownKeys(t *testing.T) {
	vars := map[string]any{"name": "Ada", "subject": "a metal duck"}

	out := Render("Portrait of {{ name }} holding {{ subject }}", vars)
	assert.Equal(t, "Portrait of Ada holding a metal duck", out)
}

func TestRender_LeavesUnknownKeysVerbatim(t *testing.T) {
	out := Render("Hello {{ name }}, welcome to {{ place }}", map[string]any{"name": "Ada"})
	assert.Equal(t, "Hello Ada, welcome to {{ place }}", out)
}

func TestRender_WhitespaceInsidePlaceholders(t *testing.T) {
	vars := map[string]any{"city": "Lisbon"}

	assert.Equal(t, "Lisbon", Render("{{city}}", vars))
	assert.Equal(t, "Lisbon", Render("{{ city }}", vars))
	assert.Equal(t, "Lisbon", Render("{{   city   }}", vars))
}

func TestRender_RepeatedKey(t *testing.T) {
	out := Render("{{ x }} and {{ x }} again", map[string]any{"x": "one"})
	assert.Equal(t, "one and one again", out)
}

func TestRender_NonStringValues(t *testing.T) {
	vars := map[string]any{"count": 3, "ratio": 2.5, "flag": true}

	out := Render("count={{ count }} ratio={{ ratio }} flag={{ flag }}", vars)
	assert.Equal(t, "count=3 ratio=2.5 flag=true", out)
}

func TestRender_EmptyTemplate(t *testing.T) {
	assert.Equal(t, "", Render("", map[string]any{"x": "y"}))
}

func TestRender_NilVars(t *testing.T) {
	out := Render("static text {{ key }}", nil)
	assert.Equal(t, "static text {{ key }}", out)
}

func TestRender_NoPlaceholders(t *testing.T) {
	out := Render("plain prompt, no substitution", map[string]any{"key": "value"})
	assert.Equal(t, "plain prompt, no substitution", out)
}
