package game

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

var moneySuffixes = []string{"", "k", "M", "B", "T", "Qa", "Qi"}

// FormatMoney renders an amount with magnitude suffixes and at most three
// significant digits: 999 -> "999", 1000 -> "1k", 1500000 -> "1.5M".
// Amounts under 1000 are floored to plain integers. Negative and non-finite
// values never reach this function; the engine refuses to produce them.
func FormatMoney(amount float64) string {
	if amount < 1000 {
		return strconv.FormatFloat(math.Floor(amount), 'f', 0, 64)
	}

	digits := len(strconv.FormatFloat(math.Floor(amount), 'f', 0, 64))
	idx := digits / 3
	if idx >= len(moneySuffixes) {
		idx = len(moneySuffixes) - 1
	}

	short := amount / math.Pow(1000, float64(idx))
	short, _ = strconv.ParseFloat(strconv.FormatFloat(short, 'g', 3, 64), 64)
	if short != math.Trunc(short) {
		short, _ = strconv.ParseFloat(strconv.FormatFloat(short, 'f', 1, 64), 64)
	}
	return strconv.FormatFloat(short, 'f', -1, 64) + moneySuffixes[idx]
}

// FormatDuration renders accumulated play time as "12h 04m 09s", dropping
// the hour part under one hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}
