// Package store is the twin's SQLite journal: raised alerts, finished relay
// commands and maintenance records. The journal only ever appends; the
// engine never reads it back.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// AlertEntry is one journaled alert.
type AlertEntry struct {
	ID             string
	Type           string
	Severity       string
	Target         string
	Message        string
	CreatedAt      time.Time
	AcknowledgedAt *time.Time
}

// CommandEntry is one finished relay command.
type CommandEntry struct {
	ID         string
	Device     string
	Action     string
	PipelineID int
	Origin     string
	Status     string
	Reason     string
	IssuedAt   time.Time
	ExecutedAt *time.Time
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    severity TEXT NOT NULL,
    target TEXT NOT NULL,
    message TEXT DEFAULT '',
    created_at TEXT NOT NULL,
    acknowledged_at TEXT
);

CREATE TABLE IF NOT EXISTS relay_commands (
    id TEXT PRIMARY KEY,
    device TEXT NOT NULL,
    action TEXT NOT NULL,
    pipeline_id INTEGER DEFAULT 0,
    origin TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT DEFAULT '',
    issued_at TEXT NOT NULL,
    executed_at TEXT
);

CREATE TABLE IF NOT EXISTS maintenance (
    id TEXT PRIMARY KEY,
    target TEXT NOT NULL,
    technician TEXT NOT NULL,
    notes TEXT DEFAULT '',
    performed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
CREATE INDEX IF NOT EXISTS idx_relay_commands_issued ON relay_commands(issued_at);
CREATE INDEX IF NOT EXISTS idx_maintenance_target ON maintenance(target, performed_at);`

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Each pooled connection to :memory: would get its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

// RecordAlert stores a newly raised alert. Re-recording the same id keeps
// the first row.
func (s *Store) RecordAlert(a model.Alert) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO alerts (id, type, severity, target, message, created_at, acknowledged_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Type), string(a.Severity), a.Target, a.Message, formatTime(a.CreatedAt), nullTime(a.AcknowledgedAt),
	)
	return err
}

// AcknowledgeAlert stamps an alert as acknowledged. An alert the journal
// never saw is inserted first.
func (s *Store) AcknowledgeAlert(a model.Alert) error {
	if err := s.RecordAlert(a); err != nil {
		return err
	}
	at := time.Now()
	if a.AcknowledgedAt != nil {
		at = *a.AcknowledgedAt
	}
	_, err := s.db.Exec(`UPDATE alerts SET acknowledged_at = ? WHERE id = ?`, formatTime(at), a.ID)
	return err
}

// ListAlerts returns journaled alerts, newest first. limit <= 0 returns all.
func (s *Store) ListAlerts(limit int) ([]AlertEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, type, severity, target, message, created_at, acknowledged_at FROM alerts ORDER BY created_at DESC, id` + limitClause(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []AlertEntry{}
	for rows.Next() {
		var e AlertEntry
		var created string
		var acked sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &e.Severity, &e.Target, &e.Message, &created, &acked); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, err
		}
		if e.AcknowledgedAt, err = parseNullTime(acked); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// Relay commands
// ---------------------------------------------------------------------------

// RecordCommand stores a finished relay command.
func (s *Store) RecordCommand(c model.RelayCommand) error {
	var executed *time.Time
	if !c.ExecutedAt.IsZero() {
		executed = &c.ExecutedAt
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO relay_commands (id, device, action, pipeline_id, origin, status, reason, issued_at, executed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.Device), c.Action, c.PipelineID, string(c.Origin), string(c.Status), c.Reason, formatTime(c.IssuedAt), nullTime(executed),
	)
	return err
}

// ListCommands returns finished commands, newest first. origin filters by
// command origin when non-empty.
func (s *Store) ListCommands(origin string, limit int) ([]CommandEntry, error) {
	query := `SELECT id, device, action, pipeline_id, origin, status, reason, issued_at, executed_at FROM relay_commands`
	var args []any
	if origin != "" {
		query += ` WHERE origin = ?`
		args = append(args, strings.ToUpper(origin))
	}
	query += ` ORDER BY issued_at DESC, id` + limitClause(limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []CommandEntry{}
	for rows.Next() {
		var e CommandEntry
		var issued string
		var executed sql.NullString
		if err := rows.Scan(&e.ID, &e.Device, &e.Action, &e.PipelineID, &e.Origin, &e.Status, &e.Reason, &issued, &executed); err != nil {
			return nil, err
		}
		if e.IssuedAt, err = time.Parse(time.RFC3339Nano, issued); err != nil {
			return nil, err
		}
		if e.ExecutedAt, err = parseNullTime(executed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CommandCounts returns the number of journaled commands per status.
func (s *Store) CommandCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM relay_commands GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

func (s *Store) RecordMaintenance(r model.MaintenanceRecord) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO maintenance (id, target, technician, notes, performed_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Target, r.Technician, r.Notes, formatTime(r.PerformedAt),
	)
	return err
}

// ListMaintenance returns records for target ("" for all), newest first.
func (s *Store) ListMaintenance(target string) ([]model.MaintenanceRecord, error) {
	query := `SELECT id, target, technician, notes, performed_at FROM maintenance`
	var args []any
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY performed_at DESC, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.MaintenanceRecord{}
	for rows.Next() {
		var r model.MaintenanceRecord
		var ts string
		if err := rows.Scan(&r.ID, &r.Target, &r.Technician, &r.Notes, &ts); err != nil {
			return nil, err
		}
		if r.PerformedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
