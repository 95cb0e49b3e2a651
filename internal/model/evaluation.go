package model

import (
	"time"

	"github.com/hps-internal/dealdesk/internal/underwrite"
)

// Evaluation is one stored underwriting run: the deal dossier that went in
// and the result that came out, decision trace included. Recommendation is
// denormalized from the verdict so stored runs can be filtered without
// unpacking the result JSON.
type Evaluation struct {
	ID             string                     `json:"id"`
	DealName       string                     `json:"deal_name"`
	Address        string                     `json:"address,omitempty"`
	Recommendation underwrite.Recommendation  `json:"recommendation"`
	Input          underwrite.DealInput       `json:"input"`
	Result         *underwrite.DealEvaluation `json:"result,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
}
