package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hps-internal/dealdesk/internal/model"
	"github.com/hps-internal/dealdesk/internal/underwrite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id             TEXT PRIMARY KEY,
	deal_name      TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	recommendation TEXT NOT NULL,
	input          TEXT NOT NULL,
	result         TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_evaluations_recommendation ON evaluations(recommendation);
CREATE INDEX IF NOT EXISTS idx_evaluations_deal_name ON evaluations(deal_name);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, ev model.Evaluation) (*model.Evaluation, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Result != nil {
		ev.Recommendation = ev.Result.Verdict.Recommendation
	}

	inputJSON, err := json.Marshal(ev.Input)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal input")
	}

	var resultJSON sql.NullString
	if ev.Result != nil {
		b, err := json.Marshal(ev.Result)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal result")
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, deal_name, address, recommendation, input, result, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.DealName, ev.Address, string(ev.Recommendation), string(inputJSON), resultJSON, ev.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert evaluation")
	}
	return &ev, nil
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, deal_name, address, recommendation, input, result, created_at FROM evaluations WHERE id = ?`,
		id,
	)
	return scanEvaluation(row)
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.Evaluation, error) {
	query := `SELECT id, deal_name, address, recommendation, input, result, created_at FROM evaluations WHERE 1=1`
	var args []any

	if filter.Recommendation != "" {
		query += ` AND recommendation = ?`
		args = append(args, filter.Recommendation)
	}
	if filter.DealName != "" {
		query += ` AND deal_name = ?`
		args = append(args, filter.DealName)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close()

	var evals []model.Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, *ev)
	}
	return evals, eris.Wrap(rows.Err(), "sqlite: list evaluations iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scannable) (*model.Evaluation, error) {
	var ev model.Evaluation
	var recommendation string
	var inputJSON string
	var resultJSON sql.NullString

	err := row.Scan(&ev.ID, &ev.DealName, &ev.Address, &recommendation, &inputJSON, &resultJSON, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("evaluation not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan evaluation")
	}

	ev.Recommendation = underwrite.Recommendation(recommendation)
	if err := json.Unmarshal([]byte(inputJSON), &ev.Input); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal input")
	}
	if resultJSON.Valid {
		ev.Result = &underwrite.DealEvaluation{}
		if err := json.Unmarshal([]byte(resultJSON.String), ev.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &ev, nil
}
