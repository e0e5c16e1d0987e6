package ingestion

import (
	"io"

	"tt-analysis/internal/domain"
)

// ScenarioSource provides the static parameters of a run and its scenario rows in order.
type ScenarioSource interface {
	// Static returns the static parameters shared by all rows.
	Static() domain.StaticParameters

	// Next returns the next scenario row, or io.EOF when exhausted.
	Next() (domain.ScenarioParameters, error)
}

// SliceSource serves scenarios from memory.
type SliceSource struct {
	static    domain.StaticParameters
	scenarios []domain.ScenarioParameters
	pos       int
}

// NewSliceSource creates a ScenarioSource over the given rows.
func NewSliceSource(static domain.StaticParameters, scenarios []domain.ScenarioParameters) *SliceSource {
	return &SliceSource{static: static, scenarios: scenarios}
}

// Static returns the static parameters.
func (s *SliceSource) Static() domain.StaticParameters {
	return s.static
}

// Next returns the next scenario or io.EOF.
func (s *SliceSource) Next() (domain.ScenarioParameters, error) {
	if s.pos >= len(s.scenarios) {
		return domain.ScenarioParameters{}, io.EOF
	}
	sc := s.scenarios[s.pos]
	s.pos++
	return sc, nil
}

var (
	_ ScenarioSource = (*SliceSource)(nil)
	_ ScenarioSource = (*CSVSource)(nil)
)
