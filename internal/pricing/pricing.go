// Package pricing menghitung subtotal/fee/total keranjang.
// Murni: tidak menyentuh state mana pun.
package pricing

import "github.com/shopspring/decimal"

type FeeType string

const (
	FeeFlat    FeeType = "flat"
	FeePercent FeeType = "percent"
)

type FeePolicy struct {
	Enabled bool
	Type    FeeType
	// Flat: rupiah. Percent: angka persen (boleh pecahan, mis. 0.7).
	Amount decimal.Decimal
}

type Addon struct {
	Price int64
	Qty   int64
}

type Line struct {
	Price  int64 // harga satuan
	Qty    int64
	Addons []Addon
}

type Breakdown struct {
	Subtotal int64
	Fee      int64
	Total    int64
}

// EffectivePrice: harga satuan plus kontribusi addon per unit.
func (l Line) EffectivePrice() int64 {
	p := l.Price
	for _, a := range l.Addons {
		p += a.Price * a.Qty
	}
	return p
}

// Calculate menjumlahkan harga efektif x qty, lalu menerapkan fee policy.
// Fee persen dibulatkan half-up (decimal.Round membulatkan half away
// from zero; untuk nominal positif itu sama dengan half-up).
func Calculate(lines []Line, fee FeePolicy) Breakdown {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.EffectivePrice() * l.Qty
	}

	var f int64
	if fee.Enabled {
		switch fee.Type {
		case FeePercent:
			f = decimal.NewFromInt(subtotal).
				Mul(fee.Amount).
				Div(decimal.NewFromInt(100)).
				Round(0).
				IntPart()
		default: // flat
			f = fee.Amount.Round(0).IntPart()
		}
	}

	return Breakdown{Subtotal: subtotal, Fee: f, Total: subtotal + f}
}
