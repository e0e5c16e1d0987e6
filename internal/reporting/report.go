package reporting

import (
	"time"

	"tt-analysis/internal/domain"
)

// Report represents one analysis run.
type Report struct {
	// Metadata
	RunID       string
	Source      string // input file name or "api"
	GeneratedAt time.Time

	Static domain.StaticParameters

	// Solved rows, ordered by row index
	Rows []domain.ScenarioResult

	// Rows that failed validation or optimization (keep-going mode only)
	Failures []RowFailure

	Summary Summary
}

// RowFailure describes a scenario row that produced no result.
type RowFailure struct {
	RowIndex int
	Kind     string // "precondition", "degenerate" or "error"
	Message  string
}

// Summary contains aggregate figures over the solved rows.
type Summary struct {
	Scenarios              int // solved + failed
	Solved                 int
	Failed                 int
	MinFractionTTLeaves    float64
	MaxFractionTTLeaves    float64
	MaxSecurityDelayBlocks int64
	MeanOverheadFraction   float64
	MaxOnchainFeeFraction  float64
	MinCapitalEfficiency   float64
	TotalLeaves            int64
	TotalValueBTC          float64
}

// Summarize computes the summary for rows and failures.
// Min/max fields are zero when rows is empty.
func Summarize(rows []domain.ScenarioResult, failures []RowFailure) Summary {
	s := Summary{
		Scenarios: len(rows) + len(failures),
		Solved:    len(rows),
		Failed:    len(failures),
	}
	if len(rows) == 0 {
		return s
	}

	first := rows[0].Result
	s.MinFractionTTLeaves = first.FractionTTLeaves
	s.MaxFractionTTLeaves = first.FractionTTLeaves
	s.MinCapitalEfficiency = first.CapitalEfficiency

	var overheadSum float64
	for _, r := range rows {
		res := r.Result
		if res.FractionTTLeaves < s.MinFractionTTLeaves {
			s.MinFractionTTLeaves = res.FractionTTLeaves
		}
		if res.FractionTTLeaves > s.MaxFractionTTLeaves {
			s.MaxFractionTTLeaves = res.FractionTTLeaves
		}
		if res.SecurityDelayBlocks > s.MaxSecurityDelayBlocks {
			s.MaxSecurityDelayBlocks = res.SecurityDelayBlocks
		}
		if res.OnchainFeeFraction > s.MaxOnchainFeeFraction {
			s.MaxOnchainFeeFraction = res.OnchainFeeFraction
		}
		if res.CapitalEfficiency < s.MinCapitalEfficiency {
			s.MinCapitalEfficiency = res.CapitalEfficiency
		}
		overheadSum += res.ExpectedOverheadFraction
		s.TotalLeaves += r.Scenario.LeafCount
		s.TotalValueBTC += r.Scenario.TotalValue
	}
	s.MeanOverheadFraction = overheadSum / float64(len(rows))

	return s
}
