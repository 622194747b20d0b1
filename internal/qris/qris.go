// Package qris mengubah template QRIS statis milik merchant menjadi
// kode dinamis yang terikat nominal, lalu menghitung ulang CRC-nya.
// Murni dan deterministik: tuple (template, amount, fee) yang sama
// selalu menghasilkan kode yang sama byte-for-byte.
package qris

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"warungpay/internal/pricing"
)

const (
	header        = "000201"
	markerStatic  = "010211"
	markerDynamic = "010212"
	countryCode   = "5802ID"

	tagAmount = "54"

	// Indikator fee sudah diakhiri tag nilainya: flat memakai tag 56,
	// persen tag 57; nilai fee menyusul length-prefixed.
	feeIndicatorFlat    = "55020256"
	feeIndicatorPercent = "55020357"

	checksumLen = 4
	minCodeLen  = 100
)

var (
	ErrTemplateTooShort = errors.New("qris: template too short")
	ErrMissingMarker    = errors.New("qris: static marker 010211 not found")
	ErrMissingCountry   = errors.New("qris: country code 5802ID not found")
	ErrNegativeAmount   = errors.New("qris: amount must not be negative")
)

// Generate membangun kode dinamis:
// buang CRC lama, flip marker statis -> dinamis, sisipkan tag nominal
// (plus tag fee bila ada) persis sebelum pasangan kode negara, lalu
// hitung CRC16 baru di atas seluruh string hasil.
func Generate(template string, amount int64, fee pricing.FeePolicy) (string, error) {
	if amount < 0 {
		return "", ErrNegativeAmount
	}
	if len(template) <= checksumLen {
		return "", ErrTemplateTooShort
	}

	body := template[:len(template)-checksumLen]
	if !strings.Contains(body, markerStatic) {
		return "", ErrMissingMarker
	}
	body = strings.Replace(body, markerStatic, markerDynamic, 1)

	prefix, suffix, found := strings.Cut(body, countryCode)
	if !found {
		return "", ErrMissingCountry
	}

	out := prefix + tlv(tagAmount, strconv.FormatInt(amount, 10)) + feeTag(fee) + countryCode + suffix
	return out + Checksum(out), nil
}

func feeTag(fee pricing.FeePolicy) string {
	if !fee.Enabled {
		return ""
	}
	v := fee.Amount.String()
	if fee.Type == pricing.FeePercent {
		return feeIndicatorPercent + lengthPrefixed(v)
	}
	return feeIndicatorFlat + lengthPrefixed(v)
}

// tlv: tag + panjang nilai 2 digit + nilai.
func tlv(tag, value string) string {
	return tag + lengthPrefixed(value)
}

func lengthPrefixed(value string) string {
	return fmt.Sprintf("%02d%s", len(value), value)
}

// Checksum: CRC16 poly 0x1021, init 0xFFFF, MSB-first, tanpa XOR akhir;
// dirender 4 digit hex kapital. Harus cocok dengan verifier eksternal.
func Checksum(s string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}

// Validate: header tetap di depan, mengandung kode negara, dan panjang
// minimal. Kode yang gagal validasi tidak boleh dipakai checkout.
func Validate(code string) bool {
	return strings.HasPrefix(code, header) &&
		strings.Contains(code, countryCode) &&
		len(code) >= minCodeLen
}
