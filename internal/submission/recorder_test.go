package submission

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/formflow/internal/event"
	"github.com/matthewbaird/formflow/internal/field"
	"github.com/matthewbaird/formflow/internal/flow"
	"github.com/matthewbaird/formflow/internal/types"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// capture collects published events synchronously.
type capture struct {
	events []event.FormEvent
}

func (c *capture) Publish(evt event.FormEvent) {
	c.events = append(c.events, evt)
}

func branchForm() *types.Form {
	return &types.Form{
		Slug:      "apply",
		StartPage: "uk-passport",
		Pages: []types.Page{
			{
				Path:  "uk-passport",
				Title: "Passport",
				Components: []types.Component{
					{Name: "ukPassport", Type: field.TypeYesNo, Title: "UK passport"},
				},
				Next: []types.Link{
					{Path: "details", Condition: "hasPassport"},
					{Path: "no-passport"},
				},
			},
			{Path: "no-passport", Title: "You cannot apply"},
			{
				Path:  "details",
				Title: "Details",
				Components: []types.Component{
					{Name: "firstName", Type: field.TypeText, Title: "First name"},
				},
			},
		},
		Conditions: []types.Condition{
			{Name: "hasPassport", Nodes: []types.ConditionNode{{
				Field:    types.FieldRef{Name: "ukPassport"},
				Operator: types.OpIs,
				Value:    types.ConditionValue{Type: types.ValueKindLiteral, Value: "true"},
			}}},
		},
	}
}

func TestBuild_CapturesOnlyReachableAnswers(t *testing.T) {
	eng, err := flow.New(branchForm())
	require.NoError(t, err)

	// The details answer is stranded on an abandoned branch.
	state := types.State{Fields: map[string]any{
		"ukPassport": false,
		"firstName":  "Ann",
	}}
	rec := Build(eng, eng.Replay(state), "apply", "s1")

	require.Len(t, rec.Answers, 1)
	assert.Equal(t, "ukPassport", rec.Answers[0].Key)
	assert.Equal(t, "No", rec.Answers[0].Value)

	state.Fields["ukPassport"] = true
	rec = Build(eng, eng.Replay(state), "apply", "s1")
	require.Len(t, rec.Answers, 2)
	assert.Equal(t, "uk-passport", rec.Answers[0].Page)
	assert.Equal(t, "details", rec.Answers[1].Page)
	assert.Equal(t, "Ann", rec.Answers[1].Value)
}

func TestRecorder_RecordAndGet(t *testing.T) {
	bus := &capture{}
	recorder, err := NewRecorder(openDB(t), bus)
	require.NoError(t, err)

	rec := Record{
		ID:          "sub-1",
		FormSlug:    "apply",
		SessionKey:  "s1",
		SubmittedAt: time.Now().UTC(),
		Answers: []Answer{
			{Page: "uk-passport", Key: "ukPassport", Title: "UK passport", Value: "Yes"},
		},
	}
	require.NoError(t, recorder.Record(context.Background(), rec))

	// The submitted event fires only after the insert succeeds.
	require.Len(t, bus.events, 1)
	assert.Equal(t, event.TypeFormSubmitted, bus.events[0].EventType)

	got, err := recorder.Get(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "apply", got.FormSlug)
	require.Len(t, got.Answers, 1)
	assert.Equal(t, "Yes", got.Answers[0].Value)

	// Duplicate ids violate the primary key.
	require.Error(t, recorder.Record(context.Background(), rec))
	assert.Len(t, bus.events, 1)
}

func TestRecorder_GetUnknown(t *testing.T) {
	recorder, err := NewRecorder(openDB(t), nil)
	require.NoError(t, err)

	_, err = recorder.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
