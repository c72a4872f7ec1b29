// Package journal keeps a SQLite history of routed bus messages.
//
// The inventory in the config file holds only the current state. The
// journal answers "what was sent, learned or changed, and did it work".
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nerrad567/mqtt2broadlink/internal/router"
)

// Query limits.
const (
	defaultLimit = 50
	maxLimit     = 500

	// maxPayload caps the stored payload. Pronto codes can run to
	// kilobytes and add nothing to the history.
	maxPayload = 512
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one journal row.
type Entry struct {
	ID        string        `json:"id"`
	Handler   string        `json:"handler"`
	Subject   string        `json:"subject,omitempty"`
	Topic     string        `json:"topic"`
	Payload   string        `json:"payload,omitempty"`
	Result    router.Result `json:"result"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Filter controls which entries List returns.
type Filter struct {
	Handler string        // optional: exact handler name
	Subject string        // optional: exact device or command name
	Result  router.Result // optional
	Since   time.Time     // optional: entries started at or after
	Limit   int           // default 50, max 500
	Offset  int
}

// Journal writes and queries the command_journal table.
type Journal struct {
	db *sql.DB
}

// New creates a journal on db. The schema must already be migrated.
func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record implements router.Recorder.
func (j *Journal) Record(ctx context.Context, o router.Outcome) error {
	e := Entry{
		Handler:   o.Handler,
		Subject:   o.Subject,
		Topic:     o.Topic,
		Payload:   o.Payload,
		Result:    o.Result,
		StartedAt: o.Started,
		Duration:  o.Duration,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	return j.Insert(ctx, &e)
}

// Insert stores e. ID and StartedAt are generated when empty.
func (j *Journal) Insert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO command_journal (id, handler, subject, topic, payload, result, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Handler, e.Subject, e.Topic, truncate(e.Payload, maxPayload),
		string(e.Result), nullableString(e.Error),
		e.StartedAt.UTC().Format(timeLayout), e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching filter, most recent first.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	filter.Limit = min(filter.Limit, maxLimit)
	filter.Offset = max(filter.Offset, 0)

	var conditions []string
	var args []any

	if filter.Handler != "" {
		conditions = append(conditions, "handler = ?")
		args = append(args, filter.Handler)
	}
	if filter.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, filter.Subject)
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, string(filter.Result))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, handler, subject, topic, payload, result, error, started_at, duration_ms
		 FROM command_journal %s ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`, where)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var result, startedAt string
		var errText sql.NullString
		var durationMS int64

		if err := rows.Scan(&e.ID, &e.Handler, &e.Subject, &e.Topic, &e.Payload,
			&result, &errText, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		e.Result = router.Result(result)
		e.Error = errText.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if e.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", startedAt, err)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}
	return entries, nil
}

// Prune deletes entries started before cutoff and returns how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM command_journal WHERE started_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: counting rows: %w", err)
	}
	return n, nil
}

// nullableString returns nil for empty strings so TEXT columns stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// truncate shortens s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
