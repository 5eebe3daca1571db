package storage

import (
	"context"
	"fmt"
)

// PlanStep is one row of the driver's query plan.
type PlanStep struct {
	ID     int
	Parent int
	Detail string
}

// Explain exposes the underlying query plan for a statement. Diagnostic
// surface only; never used on request paths.
func Explain(ctx context.Context, h Handle, stmt string, args ...any) ([]PlanStep, error) {
	rows, err := QueryMany(ctx, h, `EXPLAIN QUERY PLAN `+stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	var out []PlanStep
	for rows.Next() {
		var (
			step    PlanStep
			notUsed int
		)
		if err := rows.Scan(&step.ID, &step.Parent, &notUsed, &step.Detail); err != nil {
			return nil, fmt.Errorf("explain: scan row: %w", err)
		}
		out = append(out, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: iterate: %w", err)
	}
	return out, nil
}
