// Package submission turns a completed journey into a durable record.
// Answers are captured from relevant state only — anything stranded on an
// abandoned branch never reaches the submission — and persisted to SQLite
// before the submitted event is published.
package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/formflow/internal/event"
	"github.com/matthewbaird/formflow/internal/flow"
)

// Answer is one human-readable answer row.
type Answer struct {
	Page  string `json:"page"`
	Key   string `json:"key"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// Record is a completed submission.
type Record struct {
	ID          string    `json:"id"`
	FormSlug    string    `json:"formSlug"`
	SessionKey  string    `json:"sessionKey"`
	SubmittedAt time.Time `json:"submittedAt"`
	Answers     []Answer  `json:"answers"`
}

// Recorder writes submissions to SQLite, then publishes the submitted
// event. The publish happens only after the insert succeeds.
type Recorder struct {
	db  *sql.DB
	bus event.Publisher
}

// NewRecorder prepares the submissions table. bus may be nil.
func NewRecorder(db *sql.DB, bus event.Publisher) (*Recorder, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	form_slug TEXT NOT NULL,
	session_key TEXT NOT NULL,
	submitted_at TEXT NOT NULL,
	answers TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_form ON submissions (form_slug, submitted_at);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("submission: create schema: %w", err)
	}
	return &Recorder{db: db, bus: bus}, nil
}

// Build assembles a submission from a replay result, in visited-page
// order. Fields without a display value (unanswered optionals) are
// skipped.
func Build(engine *flow.Engine, replayed flow.Context, formSlug, sessionKey string) Record {
	rec := Record{
		ID:          uuid.NewString(),
		FormSlug:    formSlug,
		SessionKey:  sessionKey,
		SubmittedAt: time.Now().UTC(),
	}
	for _, path := range replayed.Paths {
		page, ok := engine.Graph().Page(path)
		if !ok {
			continue
		}
		col, ok := engine.Collection(path)
		if !ok {
			continue
		}
		sectionState := replayed.State.Section(page.Section)
		for _, f := range col.Fields() {
			value := f.DisplayStringFromState(sectionState)
			if value == "" {
				continue
			}
			rec.Answers = append(rec.Answers, Answer{
				Page:  path,
				Key:   f.Def().Name,
				Title: f.Def().Title,
				Value: value,
			})
		}
	}
	return rec
}

// Record inserts the submission and publishes form.submitted.
func (r *Recorder) Record(ctx context.Context, rec Record) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("submission: encode answers: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO submissions (id, form_slug, session_key, submitted_at, answers) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.FormSlug, rec.SessionKey, rec.SubmittedAt.Format(time.RFC3339Nano), string(answers))
	if err != nil {
		return fmt.Errorf("submission: insert: %w", err)
	}

	if r.bus != nil {
		evt := event.New(event.TypeFormSubmitted, rec.FormSlug, rec.SessionKey)
		evt.Payload, _ = json.Marshal(map[string]any{"submissionId": rec.ID, "answers": len(rec.Answers)})
		r.bus.Publish(evt)
	}
	return nil
}

// Get loads a submission by id.
func (r *Recorder) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, form_slug, session_key, submitted_at, answers FROM submissions WHERE id = ?`, id)
	var rec Record
	var submittedAt, answers string
	if err := row.Scan(&rec.ID, &rec.FormSlug, &rec.SessionKey, &submittedAt, &answers); err != nil {
		return Record{}, fmt.Errorf("submission: get %s: %w", id, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, submittedAt); err == nil {
		rec.SubmittedAt = t
	}
	if err := json.Unmarshal([]byte(answers), &rec.Answers); err != nil {
		return Record{}, fmt.Errorf("submission: decode answers for %s: %w", id, err)
	}
	return rec, nil
}
