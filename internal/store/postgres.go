package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hps-internal/dealdesk/internal/model"
	"github.com/hps-internal/dealdesk/internal/underwrite"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// too, which keeps the postgres driver unit-testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_evaluation": `INSERT INTO evaluations (id, deal_name, address, recommendation, input, result, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_evaluation":    `SELECT id, deal_name, address, recommendation, input, result, created_at FROM evaluations WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	deal_name      TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	recommendation TEXT NOT NULL,
	input          JSONB NOT NULL,
	result         JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_recommendation ON evaluations(recommendation);
CREATE INDEX IF NOT EXISTS idx_evaluations_deal_name ON evaluations(deal_name);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, ev model.Evaluation) (*model.Evaluation, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal input")
	}

	var resultJSON []byte
	if ev.Result != nil {
		resultJSON, err = json.Marshal(ev.Result)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal result")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, deal_name, address, recommendation, input, result, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.DealName, ev.Address, string(ev.Recommendation), inputJSON, resultJSON, ev.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert evaluation")
	}
	return &ev, nil
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	var ev model.Evaluation
	var recommendation string
	var inputJSON []byte
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, deal_name, address, recommendation, input, result, created_at FROM evaluations WHERE id = $1`,
		id,
	).Scan(&ev.ID, &ev.DealName, &ev.Address, &recommendation, &inputJSON, &resultNull, &ev.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get evaluation %s", id)
	}

	ev.Recommendation = underwrite.Recommendation(recommendation)
	if err := json.Unmarshal(inputJSON, &ev.Input); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal input")
	}
	if resultNull != nil {
		ev.Result = &underwrite.DealEvaluation{}
		if err := json.Unmarshal(*resultNull, ev.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &ev, nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.Evaluation, error) {
	query := `SELECT id, deal_name, address, recommendation, input, result, created_at FROM evaluations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Recommendation != "" {
		query += fmt.Sprintf(` AND recommendation = $%d`, argIdx)
		args = append(args, filter.Recommendation)
		argIdx++
	}
	if filter.DealName != "" {
		query += fmt.Sprintf(` AND deal_name = $%d`, argIdx)
		args = append(args, filter.DealName)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var evals []model.Evaluation
	for rows.Next() {
		var ev model.Evaluation
		var recommendation string
		var inputJSON []byte
		var resultNull *[]byte

		if err := rows.Scan(&ev.ID, &ev.DealName, &ev.Address, &recommendation, &inputJSON, &resultNull, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		ev.Recommendation = underwrite.Recommendation(recommendation)
		if err := json.Unmarshal(inputJSON, &ev.Input); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal input")
		}
		if resultNull != nil {
			ev.Result = &underwrite.DealEvaluation{}
			if err := json.Unmarshal(*resultNull, ev.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		evals = append(evals, ev)
	}
	return evals, eris.Wrap(rows.Err(), "postgres: list evaluations iterate")
}
