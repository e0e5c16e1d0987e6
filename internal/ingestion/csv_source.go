package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tt-analysis/internal/domain"
)

// ErrHeaderMismatch is returned when a header row does not match the expected names.
var ErrHeaderMismatch = errors.New("header mismatch")

// CSVSource reads an analysis input file:
//
//	row 1: Ac,Ro,AS,MS
//	row 2: static values
//	row 3: Fe,Ex,Pr,Le,Va,Co
//	rows 4+: one scenario per row
//
// Blank lines are ignored.
type CSVSource struct {
	r      *csv.Reader
	static domain.StaticParameters
	line   int
}

// NewCSVSource reads and validates the header rows and static parameters.
// Scenario rows are read lazily by Next.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := &CSVSource{r: cr}

	if err := s.expectHeader(domain.StaticHeaders); err != nil {
		return nil, err
	}
	static, err := s.readStatic()
	if err != nil {
		return nil, err
	}
	s.static = static
	if err := s.expectHeader(domain.ScenarioHeaders); err != nil {
		return nil, err
	}

	return s, nil
}

// Static returns the static parameters from row 2.
func (s *CSVSource) Static() domain.StaticParameters {
	return s.static
}

// Next parses the next scenario row. Returns io.EOF at end of input.
func (s *CSVSource) Next() (domain.ScenarioParameters, error) {
	rec, err := s.read()
	if err != nil {
		return domain.ScenarioParameters{}, err
	}
	if len(rec) != len(domain.ScenarioHeaders) {
		return domain.ScenarioParameters{}, fmt.Errorf("line %d: expected %d scenario values, got %d",
			s.line, len(domain.ScenarioHeaders), len(rec))
	}

	p := &fieldParser{line: s.line}
	sc := domain.ScenarioParameters{
		BaseFeerate:        p.float("Fe", rec[0]),
		FeerateExponent:    p.float("Ex", rec[1]),
		OnchainProbability: p.float("Pr", rec[2]),
		LeafCount:          p.int("Le", rec[3]),
		TotalValue:         p.float("Va", rec[4]),
		CapitalCostRate:    p.float("Co", rec[5]),
	}
	if p.err != nil {
		return domain.ScenarioParameters{}, p.err
	}
	return sc, nil
}

// ReadAll drains the remaining scenario rows.
func (s *CSVSource) ReadAll() ([]domain.ScenarioParameters, error) {
	var out []domain.ScenarioParameters
	for {
		sc, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
}

func (s *CSVSource) read() ([]string, error) {
	rec, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read csv: %w", err)
	}
	s.line, _ = s.r.FieldPos(0)
	return rec, nil
}

func (s *CSVSource) expectHeader(want []string) error {
	rec, err := s.read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: expected %s, got end of input", ErrHeaderMismatch, strings.Join(want, ","))
	}
	if err != nil {
		return err
	}
	if len(rec) != len(want) {
		return fmt.Errorf("%w: line %d: expected %s, got %s", ErrHeaderMismatch, s.line, strings.Join(want, ","), strings.Join(rec, ","))
	}
	for i := range want {
		if strings.TrimSpace(rec[i]) != want[i] {
			return fmt.Errorf("%w: line %d: expected %s, got %s", ErrHeaderMismatch, s.line, strings.Join(want, ","), strings.Join(rec, ","))
		}
	}
	return nil
}

func (s *CSVSource) readStatic() (domain.StaticParameters, error) {
	rec, err := s.read()
	if errors.Is(err, io.EOF) {
		return domain.StaticParameters{}, fmt.Errorf("missing static parameter values")
	}
	if err != nil {
		return domain.StaticParameters{}, err
	}
	if len(rec) != len(domain.StaticHeaders) {
		return domain.StaticParameters{}, fmt.Errorf("line %d: expected %d static values, got %d",
			s.line, len(domain.StaticHeaders), len(rec))
	}

	p := &fieldParser{line: s.line}
	st := domain.StaticParameters{
		ActiveLifetime: p.int("Ac", rec[0]),
		RolloverPeriod: p.int("Ro", rec[1]),
		AverageTxSize:  p.int("AS", rec[2]),
		MaxTxSize:      p.int("MS", rec[3]),
	}
	if p.err != nil {
		return domain.StaticParameters{}, p.err
	}
	return st, nil
}

// fieldParser keeps the first parse error of a row.
type fieldParser struct {
	line int
	err  error
}

func (p *fieldParser) float(name, raw string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.err = fmt.Errorf("line %d: parse %s=%q: %w", p.line, name, raw, err)
	}
	return v
}

func (p *fieldParser) int(name, raw string) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		p.err = fmt.Errorf("line %d: parse %s=%q: %w", p.line, name, raw, err)
	}
	return v
}
