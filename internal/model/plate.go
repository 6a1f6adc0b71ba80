package model

import (
	"regexp"
	"strings"
	"unicode"
)

const PlateLength = 7

var (
	legacyPlatePattern   = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`)
	mercosulPlatePattern = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z][0-9]{2}$`)
)

// NormalizePlate upper-cases the plate and drops everything that is not a
// letter or a digit ("abc-1234" -> "ABC1234").
func NormalizePlate(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// ValidPlate accepts canonical plates in the legacy LLLNNNN or the Mercosul
// LLLNLNN layout.
func ValidPlate(plate string) bool {
	if len(plate) != PlateLength {
		return false
	}
	return legacyPlatePattern.MatchString(plate) || mercosulPlatePattern.MatchString(plate)
}

// ParsePlate normalizes raw and reports whether the result is a valid plate.
func ParsePlate(raw string) (string, bool) {
	plate := NormalizePlate(raw)
	return plate, ValidPlate(plate)
}
