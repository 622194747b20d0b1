package qris

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"warungpay/internal/pricing"
)

// Template statis sintetis tapi well-formed: header, marker statis,
// kode negara, nama merchant, dan 4 karakter CRC lama di ujung.
const testTemplate = "00020101021126440014ID.CO.QRIS.WWW0215ID12345678901230303UMI520458125303360" +
	"5802ID" + "5910WARUNG IBU" + "6007JAKARTA" + "610510220" + "6304" + "A1B2"

var noFee = pricing.FeePolicy{}

func TestChecksum_KnownVector(t *testing.T) {
	// check value standar CRC-16/CCITT-FALSE
	if got := Checksum("123456789"); got != "29B1" {
		t.Fatalf("Checksum(123456789) = %s, want 29B1", got)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(testTemplate, 24000, noFee)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(testTemplate, 24000, noFee)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a != b {
		t.Errorf("same input produced different codes:\n%s\n%s", a, b)
	}
}

func TestGenerate_DynamicMarkerAndAmount(t *testing.T) {
	out, err := Generate(testTemplate, 24000, noFee)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !Validate(out) {
		t.Errorf("generated code failed validation: %q", out)
	}
	if !strings.Contains(out, "010212") {
		t.Errorf("dynamic marker missing in %q", out)
	}
	if strings.Contains(out, "010211") {
		t.Errorf("static marker still present in %q", out)
	}
	if !strings.Contains(out, "5405240005802ID") {
		t.Errorf("amount tag not inserted before country code: %q", out)
	}
	// ekor template (nama merchant dst) harus utuh
	if !strings.Contains(out, "5910WARUNG IBU6007JAKARTA") {
		t.Errorf("template suffix corrupted: %q", out)
	}
	// CRC baru harus konsisten dengan body-nya
	body, sum := out[:len(out)-4], out[len(out)-4:]
	if Checksum(body) != sum {
		t.Errorf("checksum mismatch: body wants %s, code carries %s", Checksum(body), sum)
	}
	if sum == "A1B2" {
		t.Errorf("old checksum was not recomputed")
	}
}

func TestGenerate_Fees(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		fee := pricing.FeePolicy{Enabled: true, Type: pricing.FeeFlat, Amount: decimal.NewFromInt(2000)}
		out, err := Generate(testTemplate, 24000, fee)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.Contains(out, "540524000"+"55020256042000"+"5802ID") {
			t.Errorf("flat fee tag malformed: %q", out)
		}
		if !Validate(out) {
			t.Errorf("flat-fee code failed validation")
		}
	})

	t.Run("percent", func(t *testing.T) {
		fee := pricing.FeePolicy{Enabled: true, Type: pricing.FeePercent, Amount: decimal.RequireFromString("0.7")}
		out, err := Generate(testTemplate, 24000, fee)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !strings.Contains(out, "540524000"+"55020357030.7"+"5802ID") {
			t.Errorf("percent fee tag malformed: %q", out)
		}
		if !Validate(out) {
			t.Errorf("percent-fee code failed validation")
		}
	})

	t.Run("disabled fee adds nothing", func(t *testing.T) {
		out, _ := Generate(testTemplate, 24000, noFee)
		if strings.Contains(out, "550202") {
			t.Errorf("fee tag present without fee policy: %q", out)
		}
	})
}

func TestGenerate_Errors(t *testing.T) {
	cases := []struct {
		name     string
		template string
		amount   int64
		want     error
	}{
		{"negative amount", testTemplate, -1, ErrNegativeAmount},
		{"too short", "6304", 1000, ErrTemplateTooShort},
		{"missing marker", "000201" + strings.Repeat("9", 80) + "5802ID6304ABCD", 1000, ErrMissingMarker},
		{"missing country", "00020101021152045812" + strings.Repeat("9", 80) + "6304ABCD", 1000, ErrMissingCountry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.template, tc.amount, noFee)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		code string
		want bool
	}{
		{"too short", "0002015802ID", false},
		{"wrong header", "99" + strings.Repeat("0", 120) + "5802ID", false},
		{"no country code", "000201" + strings.Repeat("0", 120), false},
		{"ok", "000201" + strings.Repeat("0", 100) + "5802ID" + "6304FFFF", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(tc.code); got != tc.want {
				t.Errorf("Validate(%q) = %v, want %v", tc.code, got, tc.want)
			}
		})
	}
}
