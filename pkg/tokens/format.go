package tokens

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatTokenCount renders n compactly: 950, 1.5k, 12.3k, 1.2M.
func FormatTokenCount(n int) string {
	if n <= 0 {
		return "0"
	}
	if n < 1000 {
		return strconv.Itoa(n)
	}
	return strings.ReplaceAll(humanize.SIWithDigits(float64(n), 1, ""), " ", "")
}

// CalculateUsagePercentage returns used/limit as a percentage in [0,100].
func CalculateUsagePercentage(used, limit int) float64 {
	if limit <= 0 || used <= 0 {
		return 0
	}
	pct := float64(used) / float64(limit) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
