package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validForm = `{
  "slug": "apply",
  "name": "Apply for a passport",
  "startPage": "uk-passport",
  "pages": [
    {
      "path": "uk-passport",
      "title": "Do you have a UK passport?",
      "components": [
        {"name": "ukPassport", "type": "yes-no", "title": "Do you have a UK passport?"}
      ],
      "next": [
        {"path": "colour", "condition": "hasPassport"},
        {"path": "no-passport"}
      ]
    },
    {"path": "no-passport", "title": "You cannot apply"},
    {
      "path": "colour",
      "title": "Pick a colour",
      "components": [
        {"name": "colour", "type": "radios", "title": "Favourite colour", "list": "colours"}
      ]
    }
  ],
  "conditions": [
    {
      "name": "hasPassport",
      "nodes": [
        {"field": {"name": "ukPassport"}, "operator": "is", "value": {"type": "Value", "value": "true"}}
      ]
    }
  ],
  "lists": [
    {"name": "colours", "items": [{"text": "Red", "value": "red"}, {"text": "Blue", "value": "blue"}]}
  ]
}`

func TestParse_ValidForm(t *testing.T) {
	form, err := Parse([]byte(validForm))
	require.NoError(t, err)

	assert.Equal(t, "apply", form.Slug)
	assert.Equal(t, "uk-passport", form.StartPage)
	assert.Len(t, form.Pages, 3)

	cond, ok := form.ConditionByName("hasPassport")
	require.True(t, ok)
	assert.Equal(t, "is", cond.Nodes[0].Operator)

	list, ok := form.ListByName("colours")
	require.True(t, ok)
	assert.Len(t, list.Items, 2)
}

func TestParse_RejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"slug":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParse_RejectsUnknownFieldType(t *testing.T) {
	_, err := Parse([]byte(`{
	  "slug": "f", "name": "F", "startPage": "a",
	  "pages": [{"path": "a", "title": "A", "components": [
	    {"name": "x", "type": "telepathy", "title": "X"}
	  ]}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}

func TestParse_RejectsUnknownOperator(t *testing.T) {
	_, err := Parse([]byte(`{
	  "slug": "f", "name": "F", "startPage": "a",
	  "pages": [{"path": "a", "title": "A"}],
	  "conditions": [{"name": "c", "nodes": [
	    {"field": {"name": "x"}, "operator": "resembles", "value": {"type": "Value", "value": "y"}}
	  ]}]
	}`))
	require.Error(t, err)
}

func TestParse_RejectsMissingListReference(t *testing.T) {
	_, err := Parse([]byte(`{
	  "slug": "f", "name": "F", "startPage": "a",
	  "pages": [{"path": "a", "title": "A", "components": [
	    {"name": "x", "type": "radios", "title": "X", "list": "ghosts"}
	  ]}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown list")
}

func TestParse_RejectsRepeatWithoutConfig(t *testing.T) {
	_, err := Parse([]byte(`{
	  "slug": "f", "name": "F", "startPage": "a",
	  "pages": [{"path": "a", "title": "A", "controller": "repeat"}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeat configuration")

	_, err = Parse([]byte(`{
	  "slug": "f", "name": "F", "startPage": "a",
	  "pages": [{"path": "a", "title": "A", "controller": "repeat",
	    "repeat": {"name": "items", "min": 5, "max": 2}}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than max")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apply.json"), []byte(validForm), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"apply"}, reg.Slugs())

	form, ok := reg.Get("apply")
	require.True(t, ok)
	assert.Equal(t, "Apply for a passport", form.Name)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestLoadDir_DuplicateSlug(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(validForm), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(validForm), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate slug")
}
