package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// runIDBytes is the number of hash bytes kept in a run_id.
const runIDBytes = 16

// ComputeRunID computes a deterministic run_id from the input source name and
// the ordered scenario IDs of the run.
// Formula: base58(SHA256(source|scenario_id_1|...|scenario_id_n)[:16])
// The same input file always yields the same run_id.
func ComputeRunID(source string, scenarioIDs []string) string {
	var sb strings.Builder
	sb.WriteString(source)
	for _, id := range scenarioIDs {
		sb.WriteByte('|')
		sb.WriteString(id)
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return base58.Encode(hash[:runIDBytes])
}

// DecodeRunID returns the raw hash bytes of a run_id.
// Returns an error if runID is not base58 or has the wrong length.
func DecodeRunID(runID string) ([]byte, error) {
	raw, err := base58.Decode(runID)
	if err != nil {
		return nil, fmt.Errorf("decode run_id: %w", err)
	}
	if len(raw) != runIDBytes {
		return nil, fmt.Errorf("run_id must decode to %d bytes, got %d", runIDBytes, len(raw))
	}
	return raw, nil
}
