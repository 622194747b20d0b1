package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculate_NoFee(t *testing.T) {
	br := Calculate([]Line{
		{Price: 12000, Qty: 2},
		{Price: 5000, Qty: 1},
	}, FeePolicy{})

	if br.Subtotal != 29000 || br.Fee != 0 || br.Total != 29000 {
		t.Errorf("got %+v, want subtotal=29000 fee=0 total=29000", br)
	}
}

func TestCalculate_FlatFee(t *testing.T) {
	fee := FeePolicy{Enabled: true, Type: FeeFlat, Amount: decimal.NewFromInt(2000)}
	br := Calculate([]Line{{Price: 24000, Qty: 1}}, fee)

	if br.Fee != 2000 {
		t.Errorf("fee = %d, want 2000", br.Fee)
	}
	if br.Total != br.Subtotal+br.Fee {
		t.Errorf("invariant broken: %+v", br)
	}
}

func TestCalculate_PercentFee_RoundHalfUp(t *testing.T) {
	cases := []struct {
		name     string
		subtotal int64
		percent  string
		wantFee  int64
	}{
		{"exact", 24000, "0.7", 168},
		{"rounds down", 1010, "2.5", 25},  // 25.25
		{"half rounds up", 100, "2.5", 3}, // 2.5
		{"zero subtotal", 0, "2.5", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee := FeePolicy{Enabled: true, Type: FeePercent, Amount: decimal.RequireFromString(tc.percent)}
			br := Calculate([]Line{{Price: tc.subtotal, Qty: 1}}, fee)
			if br.Fee != tc.wantFee {
				t.Errorf("fee = %d, want %d", br.Fee, tc.wantFee)
			}
			if br.Total != br.Subtotal+br.Fee {
				t.Errorf("invariant broken: %+v", br)
			}
		})
	}
}

func TestCalculate_AddonsFoldIntoEffectivePrice(t *testing.T) {
	lines := []Line{
		{
			Price: 10000,
			Qty:   2,
			Addons: []Addon{
				{Price: 3000, Qty: 1},
				{Price: 500, Qty: 2},
			},
		},
	}
	// efektif per unit: 10000 + 3000 + 1000 = 14000
	br := Calculate(lines, FeePolicy{})
	if br.Subtotal != 28000 {
		t.Errorf("subtotal = %d, want 28000", br.Subtotal)
	}
}
