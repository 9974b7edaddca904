package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/formflow/internal/types"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func isTrue(name, fieldName string) types.Condition {
	return types.Condition{Name: name, Nodes: []types.ConditionNode{{
		Field:    types.FieldRef{Name: fieldName},
		Operator: types.OpIs,
		Value:    types.ConditionValue{Type: types.ValueKindLiteral, Value: "true"},
	}}}
}

func TestNew_ValidatesIntegrity(t *testing.T) {
	base := func() *types.Form {
		return &types.Form{
			Slug:      "f",
			StartPage: "a",
			Pages: []types.Page{
				{Path: "a", Next: []types.Link{{Path: "b"}}},
				{Path: "b"},
			},
		}
	}

	_, err := New(base())
	require.NoError(t, err)

	f := base()
	f.StartPage = "missing"
	_, err = New(f)
	assert.ErrorContains(t, err, "start page")

	f = base()
	f.Pages[0].Next = []types.Link{{Path: "nowhere"}}
	_, err = New(f)
	assert.ErrorContains(t, err, "unknown path")

	f = base()
	f.Pages[0].Next = []types.Link{{Path: "b", Condition: "ghost"}}
	_, err = New(f)
	assert.ErrorContains(t, err, "unknown condition")

	f = base()
	f.Pages = append(f.Pages, types.Page{Path: "a"})
	_, err = New(f)
	assert.ErrorContains(t, err, "duplicate page path")
}

func TestNextPath_ConditionedLinkWins(t *testing.T) {
	form := &types.Form{
		Slug:      "f",
		StartPage: "start",
		Pages: []types.Page{
			{Path: "start", Next: []types.Link{
				{Path: "left", Condition: "goLeft"},
				{Path: "right"},
			}},
			{Path: "left"},
			{Path: "right"},
		},
		Conditions: []types.Condition{isTrue("goLeft", "flag")},
	}
	g, err := New(form)
	require.NoError(t, err)

	page, _ := g.Page("start")
	assert.Equal(t, "left", g.NextPath(page, map[string]any{"flag": true}, now))
	assert.Equal(t, "right", g.NextPath(page, map[string]any{"flag": false}, now))
	assert.Equal(t, "right", g.NextPath(page, map[string]any{}, now))
}

func TestNextPath_LastUnconditionedLinkIsDefault(t *testing.T) {
	// Links [{A if condA}, {B}, {D, E if condE}]: with condA and condE both
	// false the later default D beats the earlier default B.
	form := &types.Form{
		Slug:      "f",
		StartPage: "start",
		Pages: []types.Page{
			{Path: "start", Next: []types.Link{
				{Path: "a", Condition: "condA"},
				{Path: "b"},
				{Path: "d"},
				{Path: "e", Condition: "condE"},
			}},
			{Path: "a"}, {Path: "b"}, {Path: "d"}, {Path: "e"},
		},
		Conditions: []types.Condition{
			isTrue("condA", "wantA"),
			isTrue("condE", "wantE"),
		},
	}
	g, err := New(form)
	require.NoError(t, err)
	page, _ := g.Page("start")

	assert.Equal(t, "d", g.NextPath(page, map[string]any{}, now))

	// A conditioned link that holds still wins over any default, even one
	// declared after it.
	assert.Equal(t, "a", g.NextPath(page, map[string]any{"wantA": true}, now))
	assert.Equal(t, "e", g.NextPath(page, map[string]any{"wantE": true}, now))
}

func TestNextPath_SummaryAdvancesToStatus(t *testing.T) {
	form := &types.Form{
		Slug:      "f",
		StartPage: "summary",
		Pages: []types.Page{
			{Path: "summary", Controller: types.ControllerSummary},
			{Path: "status", Controller: types.ControllerStatus},
		},
	}
	g, err := New(form)
	require.NoError(t, err)

	summary, _ := g.Page("summary")
	assert.Equal(t, "status", g.NextPath(summary, map[string]any{}, now))

	// Status itself is terminal.
	status, _ := g.Page("status")
	assert.Equal(t, "", g.NextPath(status, map[string]any{}, now))
}

func TestNextPath_NoLinksIsTerminal(t *testing.T) {
	form := &types.Form{
		Slug:      "f",
		StartPage: "end",
		Pages:     []types.Page{{Path: "end"}},
	}
	g, err := New(form)
	require.NoError(t, err)

	page, _ := g.Page("end")
	assert.Equal(t, "", g.NextPath(page, map[string]any{}, now))
}
