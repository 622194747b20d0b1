package orders

import (
	"fmt"
	"math/rand"
	"strconv"
)

// newOrderID: suffix 6 digit dari unix-milli + 2 digit acak sebagai
// tie-breaker, supaya id tidak sekuensial-tebakable tapi tetap pendek
// untuk disebut di chat.
func newOrderID(unixMilli int64) string {
	ms := strconv.FormatInt(unixMilli, 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return fmt.Sprintf("ORD-%s%02d", ms, rand.Intn(100))
}
