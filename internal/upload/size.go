package upload

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const sizeBase = 1024

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with 1024 based units and up to two
// decimals, e.g. "1.5 KB" or "100 MB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	value := float64(bytes)
	i := 0
	for value >= sizeBase && i < len(sizeUnits)-1 {
		value /= sizeBase
		i++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// ParseSize reads sizes like "32MB", "100 mb", "1.5KB", "2G" or a plain byte count.
func ParseSize(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("empty size")
	}
	idx := strings.IndexFunc(raw, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	number, unit := raw, ""
	if idx >= 0 {
		number, unit = raw[:idx], strings.ToUpper(strings.TrimSpace(raw[idx:]))
	}
	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	multiplier := float64(1)
	switch unit {
	case "", "B", "BYTE", "BYTES":
	case "K", "KB", "KIB":
		multiplier = sizeBase
	case "M", "MB", "MIB":
		multiplier = sizeBase * sizeBase
	case "G", "GB", "GIB":
		multiplier = sizeBase * sizeBase * sizeBase
	default:
		return 0, fmt.Errorf("invalid size unit %q in %q", unit, s)
	}
	return int64(value * multiplier), nil
}
