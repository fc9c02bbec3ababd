package money

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
)

func TestBPSComparison(t *testing.T) {
	if !NewBPSFromInt(51).GreaterThan(NewBPSFromInt(50)) {
		t.Error("51 bps should exceed 50 bps")
	}
	if NewBPSFromInt(50).GreaterThan(NewBPSFromInt(50)) {
		t.Error("equal thresholds must not compare greater")
	}
	if got := NewBPSFromInt(50).Int64(); got != 50 {
		t.Errorf("Int64: got %d", got)
	}
}

func TestBPSFormatting(t *testing.T) {
	bps := NewBPSFromInt(50)
	if got := bps.Percent(); got != "0.50%" {
		t.Errorf("Percent: got %q", got)
	}
	if got := bps.String(); got != "50 bps" {
		t.Errorf("String: got %q", got)
	}
	if got := bps.Float64(); got != 0.5 {
		t.Errorf("Float64: got %v", got)
	}
}

func TestDeviationBPS(t *testing.T) {
	tests := []struct {
		name     string
		previous uint64
		current  uint64
		want     BPS
	}{
		{"no change", 1_000_000, 1_000_000, 0},
		{"up 1 percent", 1_000_000, 1_010_000, 100},
		{"down 1 percent", 1_000_000, 990_000, 100},
		{"up 50 bps", 1_000_000, 1_005_000, 50},
		{"doubled", 1_000_000, 2_000_000, 10000},
		{"dropped to zero", 1_000_000, 0, 10000},
		{"sub-bps change floors to zero", 1_000_000_000, 1_000_000_001, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeviationBPS(uint256.NewInt(tt.previous), uint256.NewInt(tt.current))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviationBPS_ZeroPrevious(t *testing.T) {
	if got := DeviationBPS(uint256.NewInt(0), uint256.NewInt(5)); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
	if got := DeviationBPS(nil, uint256.NewInt(5)); got != 0 {
		t.Errorf("nil previous: got %v, want 0", got)
	}
}

func TestDeviationBPS_Clamped(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	got := DeviationBPS(uint256.NewInt(1), huge)
	if got != BPS(math.MaxInt64) {
		t.Errorf("got %v, want MaxInt64 clamp", got)
	}
}
