package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"razer-doctor/internal/report"

	"github.com/google/uuid"
)

// Record is one archived troubleshooter run. The run id and timestamp live
// here only, never inside the diagnosis itself.
type Record struct {
	RunID     string           `json:"run_id"     yaml:"run_id"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	Kind      report.Kind      `json:"kind"       yaml:"kind"`
	Summary   report.Summary   `json:"summary"    yaml:"summary"`
	Diagnosis report.Diagnosis `json:"diagnosis"  yaml:"diagnosis"`
}

// SaveDiagnosis archives d under a fresh run id.
func SaveDiagnosis(db *sql.DB, d report.Diagnosis, at time.Time) (Record, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return Record{}, fmt.Errorf("marshal diagnosis: %w", err)
	}

	var summary report.Summary
	if d.Report != nil {
		summary = d.Report.Summary()
	}

	rec := Record{
		RunID:     uuid.NewString(),
		CreatedAt: at.UTC().Truncate(time.Second),
		Kind:      d.Kind,
		Summary:   summary,
		Diagnosis: d,
	}

	query := `INSERT INTO diagnoses (run_id, created_at, kind, passed, failed, indeterminate, payload)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = db.Exec(query, rec.RunID, rec.CreatedAt.Unix(), rec.Kind.String(),
		summary.Passed, summary.Failed, summary.Indeterminate, string(payload))
	if err != nil {
		return Record{}, fmt.Errorf("insert diagnosis: %w", err)
	}
	return rec, nil
}

// ListDiagnoses returns the most recent runs first. A non-positive limit
// returns every run.
func ListDiagnoses(db *sql.DB, limit int) ([]Record, error) {
	query := `SELECT run_id, created_at, kind, passed, failed, indeterminate, payload
			  FROM diagnoses ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetDiagnosis returns the run with the given id, or nil if there is none.
func GetDiagnosis(db *sql.DB, runID string) (*Record, error) {
	query := `SELECT run_id, created_at, kind, passed, failed, indeterminate, payload
			  FROM diagnoses WHERE run_id = ?`

	rec, err := scanRecord(db.QueryRow(query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var ts int64
	var kind, payload string
	if err := row.Scan(&rec.RunID, &ts, &kind, &rec.Summary.Passed, &rec.Summary.Failed, &rec.Summary.Indeterminate, &payload); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(ts, 0).UTC()
	if err := rec.Kind.UnmarshalText([]byte(kind)); err != nil {
		return Record{}, fmt.Errorf("run %s: %w", rec.RunID, err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Diagnosis); err != nil {
		return Record{}, fmt.Errorf("run %s: decode payload: %w", rec.RunID, err)
	}
	return rec, nil
}
