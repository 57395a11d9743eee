// Package recorder persists experiment results to a SQLite database so runs
// can be listed and compared after the process exits.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/risp/internal/processor"
	"github.com/nvandessel/risp/internal/simulation"
)

// DBFile is the database file name inside the recorder directory.
const DBFile = "runs.db"

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("run not found")

// Recorder stores simulation results in SQLite.
type Recorder struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Processor   string        `json:"processor" yaml:"processor"`
	NetworkID   int           `json:"network_id" yaml:"network_id"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
	NetworkTime float64       `json:"network_time" yaml:"network_time"`
	Steps       int           `json:"steps" yaml:"steps"`
	OutputFires int           `json:"output_fires" yaml:"output_fires"`
}

// Open opens (creating if needed) dir/runs.db.
func Open(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recorder directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Recorder{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (r *Recorder) Path() string { return r.dbPath }

// Close closes the database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// RecordRun stores result together with the parameters it ran under and
// returns the new run id.
func (r *Recorder) RecordRun(ctx context.Context, result *simulation.Result, params processor.Params) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, processor, network_id, params, started_at, elapsed_ns, network_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Name, result.Processor, result.NetworkID, string(paramsJSON),
		result.StartedAt.UTC().Format(time.RFC3339Nano), result.Elapsed.Nanoseconds(), result.Final().Time)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := insertNodes(ctx, tx, id, result); err != nil {
		return "", err
	}
	for _, sr := range result.Steps {
		if err := insertStep(ctx, tx, id, sr); err != nil {
			return "", fmt.Errorf("step %d: %w", sr.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

func insertNodes(ctx context.Context, tx *sql.Tx, runID string, result *simulation.Result) error {
	outputOf := make(map[uint32]int, len(result.Outputs))
	for o, node := range result.Outputs {
		outputOf[node] = o
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_nodes (run_id, position, node_id, output_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer stmt.Close()

	for pos, node := range result.NodeIDs {
		var output sql.NullInt64
		if o, ok := outputOf[node]; ok {
			output = sql.NullInt64{Int64: int64(o), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, pos, node, output); err != nil {
			return fmt.Errorf("failed to insert node %d: %w", node, err)
		}
	}
	return nil
}

func insertStep(ctx context.Context, tx *sql.Tx, runID string, sr simulation.StepResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO steps (run_id, step, label, start, duration, time, total_fires, total_accumulates)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, sr.Index, sr.Label, sr.Start, sr.Duration, sr.Time, sr.TotalFires, sr.TotalAccumulates)
	if err != nil {
		return fmt.Errorf("failed to insert step: %w", err)
	}

	for o, count := range sr.OutputCounts {
		last := -1.0
		if o < len(sr.OutputLastFires) {
			last = sr.OutputLastFires[o]
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outputs (run_id, step, output_id, count, last_fire) VALUES (?, ?, ?, ?, ?)`,
			runID, sr.Index, o, count, last); err != nil {
			return fmt.Errorf("failed to insert output %d: %w", o, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO neurons (run_id, step, position, charge, count, last_fire) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare neuron insert: %w", err)
	}
	defer stmt.Close()

	for pos, charge := range sr.NeuronCharges {
		var count sql.NullInt64
		var last sql.NullFloat64
		if pos < len(sr.NeuronCounts) {
			count = sql.NullInt64{Int64: int64(sr.NeuronCounts[pos]), Valid: true}
		}
		if pos < len(sr.NeuronLastFires) {
			last = sql.NullFloat64{Float64: sr.NeuronLastFires[pos], Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, sr.Index, pos, charge, count, last); err != nil {
			return fmt.Errorf("failed to insert neuron %d: %w", pos, err)
		}
	}
	return nil
}

// ListRuns returns every recorded run, most recent first.
func (r *Recorder) ListRuns(ctx context.Context) ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.processor, r.network_id, r.started_at, r.elapsed_ns, r.network_time,
		       (SELECT COUNT(*) FROM steps s WHERE s.run_id = r.id),
		       (SELECT COALESCE(SUM(o.count), 0) FROM outputs o WHERE o.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var startedAt string
		var elapsed int64
		if err := rows.Scan(&s.ID, &s.Name, &s.Processor, &s.NetworkID, &startedAt, &elapsed,
			&s.NetworkTime, &s.Steps, &s.OutputFires); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		s.Elapsed = time.Duration(elapsed)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRun rebuilds a recorded result and the parameters it ran under. Event
// vectors are not stored and come back empty.
func (r *Recorder) GetRun(ctx context.Context, id string) (*simulation.Result, processor.Params, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var params processor.Params
	result := &simulation.Result{}
	var paramsJSON, startedAt string
	var elapsed int64
	var networkTime float64
	err := r.db.QueryRowContext(ctx, `
		SELECT name, processor, network_id, params, started_at, elapsed_ns, network_time
		FROM runs WHERE id = ?`, id).
		Scan(&result.Name, &result.Processor, &result.NetworkID, &paramsJSON, &startedAt, &elapsed, &networkTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, params, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, params, fmt.Errorf("failed to query run: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return nil, params, fmt.Errorf("failed to decode params: %w", err)
	}
	result.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	result.Elapsed = time.Duration(elapsed)

	if err := r.loadNodes(ctx, id, result); err != nil {
		return nil, params, err
	}
	if err := r.loadSteps(ctx, id, result); err != nil {
		return nil, params, err
	}
	return result, params, nil
}

func (r *Recorder) loadNodes(ctx context.Context, id string, result *simulation.Result) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT node_id, output_id FROM run_nodes WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	outputs := make(map[int64]uint32)
	for rows.Next() {
		var node uint32
		var output sql.NullInt64
		if err := rows.Scan(&node, &output); err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}
		result.NodeIDs = append(result.NodeIDs, node)
		if output.Valid {
			outputs[output.Int64] = node
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	result.Outputs = make([]uint32, len(outputs))
	for o, node := range outputs {
		if int(o) < len(result.Outputs) {
			result.Outputs[o] = node
		}
	}
	return nil
}

func (r *Recorder) loadSteps(ctx context.Context, id string, result *simulation.Result) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT step, label, start, duration, time, total_fires, total_accumulates
		FROM steps WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return fmt.Errorf("failed to query steps: %w", err)
	}
	for rows.Next() {
		var sr simulation.StepResult
		if err := rows.Scan(&sr.Index, &sr.Label, &sr.Start, &sr.Duration, &sr.Time,
			&sr.TotalFires, &sr.TotalAccumulates); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan step: %w", err)
		}
		result.Steps = append(result.Steps, sr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// Single connection: each query must be drained before the next.
	for i := range result.Steps {
		sr := &result.Steps[i]
		if err := r.loadOutputs(ctx, id, sr); err != nil {
			return err
		}
		if err := r.loadNeurons(ctx, id, sr); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) loadOutputs(ctx context.Context, id string, sr *simulation.StepResult) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT count, last_fire FROM outputs WHERE run_id = ? AND step = ? ORDER BY output_id`, id, sr.Index)
	if err != nil {
		return fmt.Errorf("failed to query outputs: %w", err)
	}
	defer rows.Close()

	sr.OutputCounts, sr.OutputLastFires = []int{}, []float64{}
	for rows.Next() {
		var count int
		var last float64
		if err := rows.Scan(&count, &last); err != nil {
			return fmt.Errorf("failed to scan output: %w", err)
		}
		sr.OutputCounts = append(sr.OutputCounts, count)
		sr.OutputLastFires = append(sr.OutputLastFires, last)
	}
	return rows.Err()
}

func (r *Recorder) loadNeurons(ctx context.Context, id string, sr *simulation.StepResult) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT charge, count, last_fire FROM neurons WHERE run_id = ? AND step = ? ORDER BY position`, id, sr.Index)
	if err != nil {
		return fmt.Errorf("failed to query neurons: %w", err)
	}
	defer rows.Close()

	sr.NeuronCharges, sr.NeuronCounts, sr.NeuronLastFires = []float64{}, []int{}, []float64{}
	for rows.Next() {
		var charge float64
		var count sql.NullInt64
		var last sql.NullFloat64
		if err := rows.Scan(&charge, &count, &last); err != nil {
			return fmt.Errorf("failed to scan neuron: %w", err)
		}
		sr.NeuronCharges = append(sr.NeuronCharges, charge)
		if count.Valid {
			sr.NeuronCounts = append(sr.NeuronCounts, int(count.Int64))
		}
		if last.Valid {
			sr.NeuronLastFires = append(sr.NeuronLastFires, last.Float64)
		}
	}
	return rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (r *Recorder) DeleteRun(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"neurons", "outputs", "steps", "run_nodes"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}
