package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tt-analysis/internal/domain"
	"tt-analysis/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

const insertResultQuery = `
	INSERT INTO analysis_results (
		run_id, row_index, scenario_id,
		active_lifetime, rollover_period, average_tx_size, max_tx_size,
		base_feerate, feerate_exponent, onchain_probability, leaf_count, total_value, capital_cost_rate,
		fraction_tt_leaves, security_delay_blocks, security_delay_years, capital_cost, capital_efficiency,
		onchain_fee, onchain_fee_fraction, expected_onchain_fee, expected_overhead_fraction,
		casual_user_funds, feasible_fraction, expected_cost
	) VALUES (
		$1, $2, $3,
		$4, $5, $6, $7,
		$8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18,
		$19, $20, $21, $22,
		$23, $24, $25
	)
`

const selectResultColumns = `
	SELECT
		run_id, row_index, scenario_id,
		active_lifetime, rollover_period, average_tx_size, max_tx_size,
		base_feerate, feerate_exponent, onchain_probability, leaf_count, total_value, capital_cost_rate,
		fraction_tt_leaves, security_delay_blocks, security_delay_years, capital_cost, capital_efficiency,
		onchain_fee, onchain_fee_fraction, expected_onchain_fee, expected_overhead_fraction,
		casual_user_funds, feasible_fraction, expected_cost
	FROM analysis_results
`

func insertArgs(r *domain.ScenarioResult) []any {
	st, s, m := r.Static, r.Scenario, r.Result
	return []any{
		r.RunID, r.RowIndex, r.ScenarioID,
		st.ActiveLifetime, st.RolloverPeriod, st.AverageTxSize, st.MaxTxSize,
		s.BaseFeerate, s.FeerateExponent, s.OnchainProbability, s.LeafCount, s.TotalValue, s.CapitalCostRate,
		m.FractionTTLeaves, m.SecurityDelayBlocks, m.SecurityDelayYears, m.CapitalCost, m.CapitalEfficiency,
		m.OnchainFee, m.OnchainFeeFraction, m.ExpectedOnchainFee, m.ExpectedOverheadFraction,
		m.CasualUserFunds, m.FeasibleFraction, m.ExpectedCost,
	}
}

// Insert adds a new result. Returns ErrDuplicateKey if (run_id, row_index) exists.
func (s *ResultStore) Insert(ctx context.Context, r *domain.ScenarioResult) error {
	_, err := s.pool.Exec(ctx, insertResultQuery, insertArgs(r)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert analysis result: %w", err)
	}
	return nil
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertBulk(ctx context.Context, results []*domain.ScenarioResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range results {
		if _, err := tx.Exec(ctx, insertResultQuery, insertArgs(r)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert analysis result in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all results of a run, ordered by row_index ASC.
func (s *ResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ScenarioResult, error) {
	query := selectResultColumns + `
		WHERE run_id = $1
		ORDER BY row_index ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get analysis results by run id: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// GetByScenarioID retrieves all results for a scenario, ordered by run_id, row_index.
func (s *ResultStore) GetByScenarioID(ctx context.Context, scenarioID string) ([]*domain.ScenarioResult, error) {
	query := selectResultColumns + `
		WHERE scenario_id = $1
		ORDER BY run_id ASC, row_index ASC
	`

	rows, err := s.pool.Query(ctx, query, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("get analysis results by scenario id: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// scanResults scans multiple rows into a slice of ScenarioResult.
func scanResults(rows pgx.Rows) ([]*domain.ScenarioResult, error) {
	var results []*domain.ScenarioResult

	for rows.Next() {
		var r domain.ScenarioResult
		st, s, m := &r.Static, &r.Scenario, &r.Result

		err := rows.Scan(
			&r.RunID, &r.RowIndex, &r.ScenarioID,
			&st.ActiveLifetime, &st.RolloverPeriod, &st.AverageTxSize, &st.MaxTxSize,
			&s.BaseFeerate, &s.FeerateExponent, &s.OnchainProbability, &s.LeafCount, &s.TotalValue, &s.CapitalCostRate,
			&m.FractionTTLeaves, &m.SecurityDelayBlocks, &m.SecurityDelayYears, &m.CapitalCost, &m.CapitalEfficiency,
			&m.OnchainFee, &m.OnchainFeeFraction, &m.ExpectedOnchainFee, &m.ExpectedOverheadFraction,
			&m.CasualUserFunds, &m.FeasibleFraction, &m.ExpectedCost,
		)
		if err != nil {
			return nil, fmt.Errorf("scan analysis result row: %w", err)
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis result rows: %w", err)
	}

	return results, nil
}
