package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"tt-analysis/internal/domain"
	"tt-analysis/internal/storage"
)

// ResultStore implements storage.ResultStore using ClickHouse.
type ResultStore struct {
	conn *Conn
}

// NewResultStore creates a new ResultStore.
func NewResultStore(conn *Conn) *ResultStore {
	return &ResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

const insertResultColumns = `
	INSERT INTO analysis_results (
		run_id, row_index, scenario_id,
		active_lifetime, rollover_period, average_tx_size, max_tx_size,
		base_feerate, feerate_exponent, onchain_probability, leaf_count, total_value, capital_cost_rate,
		fraction_tt_leaves, security_delay_blocks, security_delay_years, capital_cost, capital_efficiency,
		onchain_fee, onchain_fee_fraction, expected_onchain_fee, expected_overhead_fraction,
		casual_user_funds, feasible_fraction, expected_cost
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
	FROM analysis_results FINAL
`

func rowValues(r *domain.ScenarioResult) []any {
	st, s, m := r.Static, r.Scenario, r.Result
	return []any{
		r.RunID, int64(r.RowIndex), r.ScenarioID,
		st.ActiveLifetime, st.RolloverPeriod, st.AverageTxSize, st.MaxTxSize,
		s.BaseFeerate, s.FeerateExponent, s.OnchainProbability, s.LeafCount, s.TotalValue, s.CapitalCostRate,
		m.FractionTTLeaves, m.SecurityDelayBlocks, m.SecurityDelayYears, m.CapitalCost, m.CapitalEfficiency,
		m.OnchainFee, m.OnchainFeeFraction, m.ExpectedOnchainFee, m.ExpectedOverheadFraction,
		m.CasualUserFunds, m.FeasibleFraction, m.ExpectedCost,
	}
}

// Insert adds a new result. Returns ErrDuplicateKey if (run_id, row_index) exists.
func (s *ResultStore) Insert(ctx context.Context, r *domain.ScenarioResult) error {
	return s.InsertBulk(ctx, []*domain.ScenarioResult{r})
}

// InsertBulk adds multiple results atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertBulk(ctx context.Context, results []*domain.ScenarioResult) error {
	if len(results) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, r := range results {
		key := fmt.Sprintf("%s|%d", r.RunID, r.RowIndex)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	// ReplacingMergeTree would silently replace; check existing rows for append-only semantics.
	for _, r := range results {
		exists, err := s.exists(ctx, r.RunID, r.RowIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, insertResultColumns)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range results {
		if err := batch.Append(rowValues(r)...); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all results of a run, ordered by row_index ASC.
func (s *ResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ScenarioResult, error) {
	query := selectResultColumns + `
		WHERE run_id = ?
		ORDER BY row_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query analysis results by run id: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// GetByScenarioID retrieves all results for a scenario, ordered by run_id, row_index.
func (s *ResultStore) GetByScenarioID(ctx context.Context, scenarioID string) ([]*domain.ScenarioResult, error) {
	query := selectResultColumns + `
		WHERE scenario_id = ?
		ORDER BY run_id ASC, row_index ASC
	`

	rows, err := s.conn.Query(ctx, query, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("query analysis results by scenario id: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// exists checks if a result exists for the given key.
func (s *ResultStore) exists(ctx context.Context, runID string, rowIndex int) (bool, error) {
	query := `
		SELECT count() FROM analysis_results FINAL
		WHERE run_id = ? AND row_index = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, int64(rowIndex)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanResults(rows driver.Rows) ([]*domain.ScenarioResult, error) {
	var results []*domain.ScenarioResult

	for rows.Next() {
		var (
			r        domain.ScenarioResult
			rowIndex int64
		)
		st, s, m := &r.Static, &r.Scenario, &r.Result

		err := rows.Scan(
			&r.RunID, &rowIndex, &r.ScenarioID,
			&st.ActiveLifetime, &st.RolloverPeriod, &st.AverageTxSize, &st.MaxTxSize,
			&s.BaseFeerate, &s.FeerateExponent, &s.OnchainProbability, &s.LeafCount, &s.TotalValue, &s.CapitalCostRate,
			&m.FractionTTLeaves, &m.SecurityDelayBlocks, &m.SecurityDelayYears, &m.CapitalCost, &m.CapitalEfficiency,
			&m.OnchainFee, &m.OnchainFeeFraction, &m.ExpectedOnchainFee, &m.ExpectedOverheadFraction,
			&m.CasualUserFunds, &m.FeasibleFraction, &m.ExpectedCost,
		)
		if err != nil {
			return nil, fmt.Errorf("scan analysis result: %w", err)
		}
		r.RowIndex = int(rowIndex)

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis results: %w", err)
	}

	return results, nil
}
