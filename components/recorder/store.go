package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/components/recorder/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	ErrNotFound  = errors.New("run not found")
	ErrDuplicate = errors.New("sample already recorded")
)

const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusFaulted = "faulted"
)

// Run is one execution of the controller, from boot to close.
type Run struct {
	ID        int64
	Gait      string
	Period    float64
	TickRate  float64
	Actuators []ybot.ActuatorID
	StartedAt time.Time
	EndedAt   time.Time
	Ticks     int
	Status    string
}

// Sample is the state of every actuator at one tick.
type Sample struct {
	Tick      int
	At        time.Time
	Elapsed   float64
	Phase     float64
	Positions ybot.Positions
	Outputs   map[ybot.ActuatorID]int
}

// Store persists runs and their samples in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens (or creates) the database at path, and applies the embedded
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	err = applyMigrations(db, migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateRun inserts a new run and returns its id.
func (s *Store) CreateRun(ctx context.Context, r Run) (int64, error) {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (gait, period, tick_rate, actuators, started_at, status) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Gait, r.Period, r.TickRate, joinIDs(r.Actuators), toMillis(r.StartedAt), r.Status)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	return res.LastInsertId()
}

// FinishRun records how and when the run ended.
func (s *Store) FinishRun(ctx context.Context, id int64, ended time.Time, ticks int, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, ticks = ?, status = ? WHERE id = ?`,
		toMillis(ended), ticks, status, id)
	if err != nil {
		return fmt.Errorf("update run %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// AppendSamples inserts the samples in a single transaction. Either all of
// them are stored, or none.
func (s *Store) AppendSamples(ctx context.Context, runID int64, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (run_id, tick, at, elapsed, phase, actuator, position, output) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		for _, id := range smp.Positions.IDs() {
			_, err = stmt.ExecContext(ctx, runID, smp.Tick, toMillis(smp.At), smp.Elapsed, smp.Phase, int(id), smp.Positions[id], smp.Outputs[id])
			if err != nil {
				_ = tx.Rollback()
				if isPrimaryKeyViolation(err) {
					return fmt.Errorf("run %d tick %d actuator %d: %w", runID, smp.Tick, id, ErrDuplicate)
				}
				return fmt.Errorf("insert sample: %w", err)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

const runColumns = `id, gait, period, tick_rate, actuators, started_at, ended_at, ticks, status`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r     Run
		ids   string
		start int64
		end   sql.NullInt64
	)

	err := row.Scan(&r.ID, &r.Gait, &r.Period, &r.TickRate, &ids, &start, &end, &r.Ticks, &r.Status)
	if err != nil {
		return Run{}, err
	}

	r.Actuators, err = splitIDs(ids)
	if err != nil {
		return Run{}, fmt.Errorf("run %d: %w", r.ID, err)
	}

	r.StartedAt = fromMillis(start)
	if end.Valid {
		r.EndedAt = fromMillis(end.Int64)
	}

	return r, nil
}

// Runs returns every run, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

func (s *Store) Run(ctx context.Context, id int64) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// Samples returns the samples of a run in tick order.
func (s *Store) Samples(ctx context.Context, runID int64) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, at, elapsed, phase, actuator, position, output FROM samples WHERE run_id = ? ORDER BY tick, actuator`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			tick, output int
			at           int64
			elapsed      float64
			phase        float64
			actuator     int
			position     float64
		)

		err := rows.Scan(&tick, &at, &elapsed, &phase, &actuator, &position, &output)
		if err != nil {
			return nil, err
		}

		if len(out) == 0 || out[len(out)-1].Tick != tick {
			out = append(out, Sample{
				Tick:      tick,
				At:        fromMillis(at),
				Elapsed:   elapsed,
				Phase:     phase,
				Positions: ybot.Positions{},
				Outputs:   map[ybot.ActuatorID]int{},
			})
		}

		smp := &out[len(out)-1]
		smp.Positions[ybot.ActuatorID(actuator)] = position
		smp.Outputs[ybot.ActuatorID(actuator)] = output
	}

	return out, rows.Err()
}

func isPrimaryKeyViolation(err error) bool {
	var serr *msqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

func joinIDs(ids []ybot.ActuatorID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) ([]ybot.ActuatorID, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]ybot.ActuatorID, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad actuator id %q: %w", p, err)
		}
		ids[i] = ybot.ActuatorID(n)
	}
	return ids, nil
}
