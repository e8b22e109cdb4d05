// Package kibi formats and parses byte quantities using 1024-based units.
package kibi

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var DigitRegex = regexp.MustCompile(`\d+`)
var ErrInvalidByteSizeString = errors.New("invalid byte size string")

var units = []string{"bytes", "KB", "MB", "GB", "TB", "PB"}

// FormatBytes returns a human readable quantity, eg "35 MB"
func FormatBytes(b int64) string {
	scaled := b
	unit := 0
	for scaled >= 1024 && unit < len(units)-1 {
		scaled /= 1024
		unit++
	}
	return fmt.Sprintf("%v %v", scaled, units[unit])
}

// ParseBytes reads quantities such as "50", "50 bytes", "50 KB", "50m", "512 GB".
// Suffixes are 1024-based and case insensitive, and may be shortened to a
// single letter.
func ParseBytes(v string) (int64, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	digits := DigitRegex.FindString(v)
	if digits == "" || !strings.HasPrefix(v, digits) {
		return 0, ErrInvalidByteSizeString
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	multiplier := int64(1)
	switch strings.TrimSpace(v[len(digits):]) {
	case "", "bytes":
	case "k", "kb":
		multiplier = 1024
	case "m", "mb":
		multiplier = 1024 * 1024
	case "g", "gb":
		multiplier = 1024 * 1024 * 1024
	case "t", "tb":
		multiplier = 1024 * 1024 * 1024 * 1024
	case "p", "pb":
		multiplier = 1024 * 1024 * 1024 * 1024 * 1024
	default:
		return 0, ErrInvalidByteSizeString
	}
	return value * multiplier, nil
}
