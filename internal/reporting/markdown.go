package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# " + Title + "\n\n")
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))
	if r.Source != "" {
		sb.WriteString(fmt.Sprintf("Source: %s\n\n", r.Source))
	}
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Scenarios: %d | Solved: %d | Failed: %d\n\n",
		r.Summary.Scenarios, r.Summary.Solved, r.Summary.Failed))

	// Static parameters
	sb.WriteString("## Static Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Active period (blocks) | %d |\n", r.Static.ActiveLifetime))
	sb.WriteString(fmt.Sprintf("| Rollover period (blocks) | %d |\n", r.Static.RolloverPeriod))
	sb.WriteString(fmt.Sprintf("| Average tx size (vbytes) | %d |\n", r.Static.AverageTxSize))
	sb.WriteString(fmt.Sprintf("| Max tx size (vbytes) | %d |\n", r.Static.MaxTxSize))
	sb.WriteString("\n")

	// Summary
	sb.WriteString("## Summary\n\n")
	if r.Summary.Solved > 0 {
		s := r.Summary
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Fraction of block for TT leaves (min) | %.6f |\n", s.MinFractionTTLeaves))
		sb.WriteString(fmt.Sprintf("| Fraction of block for TT leaves (max) | %.6f |\n", s.MaxFractionTTLeaves))
		sb.WriteString(fmt.Sprintf("| Max security delay (blocks) | %d |\n", s.MaxSecurityDelayBlocks))
		sb.WriteString(fmt.Sprintf("| Max on-chain fee fraction | %.6f |\n", s.MaxOnchainFeeFraction))
		sb.WriteString(fmt.Sprintf("| Min capital efficiency | %.4f |\n", s.MinCapitalEfficiency))
		sb.WriteString(fmt.Sprintf("| Mean expected overhead fraction | %.6f |\n", s.MeanOverheadFraction))
		sb.WriteString(fmt.Sprintf("| Total leaves | %d |\n", s.TotalLeaves))
		sb.WriteString(fmt.Sprintf("| Total value | %s |\n", formatBTC(s.TotalValueBTC)))
	} else {
		sb.WriteString("No solved scenarios.\n")
	}
	sb.WriteString("\n")

	// Results
	sb.WriteString("## Results\n\n")
	if len(r.Rows) > 0 {
		sb.WriteString("| Row | Fe | Ex | Pr | Le | Va | Co | x | Delay (blocks) | Delay (years) | CapCost (sats) | CapEff | MaxFee (sats) | ExpFee (sats) | Overhead |\n")
		sb.WriteString("|-----|----|----|----|----|----|----|---|----------------|---------------|----------------|--------|---------------|---------------|----------|\n")
		for _, row := range r.Rows {
			sc, res := row.Scenario, row.Result
			sb.WriteString(fmt.Sprintf("| %d | %g | %g | %g | %d | %s | %g | %.6f | %d | %.6f | %.4f | %.4f | %.2f | %.4f | %.6f |\n",
				row.RowIndex+1, sc.BaseFeerate, sc.FeerateExponent, sc.OnchainProbability, sc.LeafCount,
				formatBTC(sc.TotalValue), sc.CapitalCostRate,
				res.FractionTTLeaves, res.SecurityDelayBlocks, res.SecurityDelayYears,
				res.CapitalCost, res.CapitalEfficiency, res.OnchainFee, res.ExpectedOnchainFee,
				res.ExpectedOverheadFraction))
		}
	} else {
		sb.WriteString("No results available.\n")
	}
	sb.WriteString("\n")

	// Failures (only shown if present)
	if len(r.Failures) > 0 {
		sb.WriteString("## Failed Rows\n\n")
		sb.WriteString("| Row | Kind | Error |\n")
		sb.WriteString("|-----|------|-------|\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s |\n", f.RowIndex+1, f.Kind, escapeCell(f.Message)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatBTC renders a BTC value with btcutil's unit formatting.
// Values that do not convert to a satoshi amount fall back to %g.
func formatBTC(v float64) string {
	amt, err := btcutil.NewAmount(v)
	if err != nil {
		return fmt.Sprintf("%g BTC", v)
	}
	return amt.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
