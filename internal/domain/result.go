package domain

// OptimizationResult holds the solved block-space fraction and derived metrics
// for one scenario. Field order matches ResultHeaders.
type OptimizationResult struct {
	FractionTTLeaves         float64 // x: fraction of block used by TT leaves
	SecurityDelayBlocks      int64   // blocks to put every leaf on-chain
	SecurityDelayYears       float64
	CapitalCost              float64 // sats per leaf
	CapitalEfficiency        float64
	OnchainFee               float64 // max fee per on-chain leaf (sats)
	OnchainFeeFraction       float64 // max fee as fraction of casual user's funds
	ExpectedOnchainFee       float64 // sats per leaf
	ExpectedOverheadFraction float64

	// Diagnostics, not part of the output row.
	CasualUserFunds  float64 // sats per leaf
	FeasibleFraction float64 // upper bound found by the feasibility search
	ExpectedCost     float64 // CapitalCost + ExpectedOnchainFee
}

// ResultHeaders are the metric column names in output order.
var ResultHeaders = []string{
	"FractionTTLeaves",
	"SecurityDelayBlocks",
	"SecurityDelayYears",
	"CapitalCost",
	"CapitalEfficiency",
	"OnchainFee",
	"OnchainFeeFraction",
	"ExpectedOnchainFee",
	"ExpectedOverheadFraction",
}

// ScenarioResult pairs a scenario row with its optimization result.
type ScenarioResult struct {
	RunID      string
	ScenarioID string
	RowIndex   int // 0-based index among scenario rows
	Static     StaticParameters
	Scenario   ScenarioParameters
	Result     OptimizationResult
}
