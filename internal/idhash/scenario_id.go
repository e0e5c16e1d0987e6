package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"tt-analysis/internal/domain"
)

// ComputeScenarioID computes a deterministic scenario_id using SHA256.
// Formula: SHA256(Ac|Ro|AS|MS|Fe|Ex|Pr|Le|Va|Co)
// Returns hex-encoded hash (64 characters).
func ComputeScenarioID(st domain.StaticParameters, s domain.ScenarioParameters) string {
	data := fmt.Sprintf("%d|%d|%d|%d|%s|%s|%s|%d|%s|%s",
		st.ActiveLifetime,
		st.RolloverPeriod,
		st.AverageTxSize,
		st.MaxTxSize,
		formatFloat(s.BaseFeerate),
		formatFloat(s.FeerateExponent),
		formatFloat(s.OnchainProbability),
		s.LeafCount,
		formatFloat(s.TotalValue),
		formatFloat(s.CapitalCostRate),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
