package server

import (
	"time"

	"tt-analysis/internal/analysis"
	"tt-analysis/internal/domain"
)

// StaticJSON is the wire form of domain.StaticParameters.
type StaticJSON struct {
	Ac int64 `json:"Ac"`
	Ro int64 `json:"Ro"`
	AS int64 `json:"AS"`
	MS int64 `json:"MS"`
}

func (s StaticJSON) toDomain() domain.StaticParameters {
	return domain.StaticParameters{
		ActiveLifetime: s.Ac,
		RolloverPeriod: s.Ro,
		AverageTxSize:  s.AS,
		MaxTxSize:      s.MS,
	}
}

// ScenarioJSON is the wire form of domain.ScenarioParameters.
type ScenarioJSON struct {
	Fe float64 `json:"Fe"`
	Ex float64 `json:"Ex"`
	Pr float64 `json:"Pr"`
	Le int64   `json:"Le"`
	Va float64 `json:"Va"`
	Co float64 `json:"Co"`
}

func (s ScenarioJSON) toDomain() domain.ScenarioParameters {
	return domain.ScenarioParameters{
		BaseFeerate:        s.Fe,
		FeerateExponent:    s.Ex,
		OnchainProbability: s.Pr,
		LeafCount:          s.Le,
		TotalValue:         s.Va,
		CapitalCostRate:    s.Co,
	}
}

// AnalyzeRequest is the body of POST /analyze and each /ws/analyze message.
type AnalyzeRequest struct {
	Static    StaticJSON     `json:"static"`
	Scenarios []ScenarioJSON `json:"scenarios"`
	KeepGoing bool           `json:"keep_going,omitempty"`
}

func (r *AnalyzeRequest) scenarios() []domain.ScenarioParameters {
	out := make([]domain.ScenarioParameters, len(r.Scenarios))
	for i, s := range r.Scenarios {
		out[i] = s.toDomain()
	}
	return out
}

// ResultJSON carries the nine output metrics plus diagnostics.
type ResultJSON struct {
	FractionTTLeaves         float64 `json:"FractionTTLeaves"`
	SecurityDelayBlocks      int64   `json:"SecurityDelayBlocks"`
	SecurityDelayYears       float64 `json:"SecurityDelayYears"`
	CapitalCost              float64 `json:"CapitalCost"`
	CapitalEfficiency        float64 `json:"CapitalEfficiency"`
	OnchainFee               float64 `json:"OnchainFee"`
	OnchainFeeFraction       float64 `json:"OnchainFeeFraction"`
	ExpectedOnchainFee       float64 `json:"ExpectedOnchainFee"`
	ExpectedOverheadFraction float64 `json:"ExpectedOverheadFraction"`

	CasualUserFunds  float64 `json:"casual_user_funds"`
	FeasibleFraction float64 `json:"feasible_fraction"`
	ExpectedCost     float64 `json:"expected_cost"`
}

func newResultJSON(r *domain.OptimizationResult) *ResultJSON {
	return &ResultJSON{
		FractionTTLeaves:         r.FractionTTLeaves,
		SecurityDelayBlocks:      r.SecurityDelayBlocks,
		SecurityDelayYears:       r.SecurityDelayYears,
		CapitalCost:              r.CapitalCost,
		CapitalEfficiency:        r.CapitalEfficiency,
		OnchainFee:               r.OnchainFee,
		OnchainFeeFraction:       r.OnchainFeeFraction,
		ExpectedOnchainFee:       r.ExpectedOnchainFee,
		ExpectedOverheadFraction: r.ExpectedOverheadFraction,
		CasualUserFunds:          r.CasualUserFunds,
		FeasibleFraction:         r.FeasibleFraction,
		ExpectedCost:             r.ExpectedCost,
	}
}

// RowJSON reports one scenario row. Row is 0-based.
type RowJSON struct {
	Row        int         `json:"row"`
	ScenarioID string      `json:"scenario_id,omitempty"`
	Result     *ResultJSON `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	Kind       string      `json:"kind,omitempty"`
}

func newRowJSON(o analysis.RowOutcome) RowJSON {
	row := RowJSON{Row: o.RowIndex, ScenarioID: o.ScenarioID}
	if o.Err != nil {
		row.Error = o.Err.Error()
		row.Kind = analysis.FailureKind(o.Err)
		return row
	}
	row.Result = newResultJSON(o.Result)
	return row
}

// AnalyzeResponse is the body of a successful POST /analyze.
type AnalyzeResponse struct {
	RunID  string    `json:"run_id"`
	Solved int       `json:"solved"`
	Failed int       `json:"failed"`
	Rows   []RowJSON `json:"rows"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Row   *int   `json:"row,omitempty"`
}

// StreamMessage is sent over /ws/analyze. Type is "row", "done" or "error".
type StreamMessage struct {
	Type   string         `json:"type"`
	Row    *RowJSON       `json:"row,omitempty"`
	RunID  string         `json:"run_id,omitempty"`
	Solved int            `json:"solved,omitempty"`
	Failed int            `json:"failed,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	Runs       int       `json:"runs"`
	FailedRuns int       `json:"failed_runs"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	Stores     []string  `json:"stores"`
}

// VerifyResponse is the body of GET /runs/{id}/verify.
type VerifyResponse struct {
	RunID         string             `json:"run_id"`
	TotalRows     int                `json:"total_rows"`
	MatchedRows   int                `json:"matched_rows"`
	DivergentRows int                `json:"divergent_rows"`
	Divergent     []DivergentRowJSON `json:"divergent,omitempty"`
}

// DivergentRowJSON lists the fields of a row that did not reproduce.
type DivergentRowJSON struct {
	Row        int      `json:"row"`
	ScenarioID string   `json:"scenario_id"`
	Fields     []string `json:"fields"`
}
