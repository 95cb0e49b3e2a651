package store

import (
	"context"

	"github.com/hps-internal/dealdesk/internal/model"
)

// EvaluationFilter specifies criteria for listing stored evaluations.
type EvaluationFilter struct {
	Recommendation string `json:"recommendation,omitempty"`
	DealName       string `json:"deal_name,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for underwriting runs.
type Store interface {
	SaveEvaluation(ctx context.Context, ev model.Evaluation) (*model.Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (*model.Evaluation, error)
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]model.Evaluation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
