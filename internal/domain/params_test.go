package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestStaticParameters_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  StaticParameters
		wantErr bool
	}{
		{"valid", StaticParameters{4320, 1008, 150, 200}, false},
		{"all zero", StaticParameters{}, false},
		{"equal sizes", StaticParameters{1, 1, 150, 150}, false},
		{"negative Ac", StaticParameters{-1, 1008, 150, 200}, true},
		{"negative Ro", StaticParameters{4320, -1, 150, 200}, true},
		{"negative AS", StaticParameters{4320, 1008, -150, 200}, true},
		{"MS below AS", StaticParameters{4320, 1008, 150, 149}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPreconditionViolation) {
				t.Errorf("expected ErrPreconditionViolation, got %v", err)
			}
		})
	}
}

func TestScenarioParameters_Validate(t *testing.T) {
	valid := ScenarioParameters{
		BaseFeerate:        10,
		FeerateExponent:    2,
		OnchainProbability: 0.3,
		LeafCount:          1000,
		TotalValue:         10,
		CapitalCostRate:    0.05,
	}

	tests := []struct {
		name     string
		mutate   func(*ScenarioParameters)
		wantKind error
		field    string
	}{
		{"valid", func(*ScenarioParameters) {}, nil, ""},
		{"probability bounds inclusive", func(p *ScenarioParameters) { p.OnchainProbability = 1 }, nil, ""},
		{"zero feerate", func(p *ScenarioParameters) { p.BaseFeerate = 0 }, nil, ""},
		{"negative feerate", func(p *ScenarioParameters) { p.BaseFeerate = -0.1 }, ErrPreconditionViolation, "Fe"},
		{"negative exponent", func(p *ScenarioParameters) { p.FeerateExponent = -1 }, ErrDegenerateInput, "Ex"},
		{"probability below zero", func(p *ScenarioParameters) { p.OnchainProbability = -0.01 }, ErrPreconditionViolation, "Pr"},
		{"negative leaves", func(p *ScenarioParameters) { p.LeafCount = -5 }, ErrPreconditionViolation, "Le"},
		{"zero leaves", func(p *ScenarioParameters) { p.LeafCount = 0 }, ErrDegenerateInput, "Le"},
		{"negative value", func(p *ScenarioParameters) { p.TotalValue = -1 }, ErrPreconditionViolation, "Va"},
		{"zero value", func(p *ScenarioParameters) { p.TotalValue = 0 }, ErrDegenerateInput, "Va"},
		{"cost above one", func(p *ScenarioParameters) { p.CapitalCostRate = 2 }, ErrPreconditionViolation, "Co"},
		{"infinite value", func(p *ScenarioParameters) { p.TotalValue = math.Inf(1) }, ErrDegenerateInput, "Va"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()

			if tt.wantKind == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("Validate() error = %v, want kind %v", err, tt.wantKind)
			}
			var pe *ParamError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParamError, got %T", err)
			}
			if pe.Field != tt.field {
				t.Errorf("Field = %q, want %q", pe.Field, tt.field)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error message %q does not name field %q", err.Error(), tt.field)
			}
		})
	}
}
