package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Field precisions. GGA carries hundredths of a second, GLL, RMC and ZDA
// carry thousandths.
const (
	ggaTimeDecimals    = 2
	fixTimeDecimals    = 3
	minutesDecimals    = 3
	rmcSpeedDecimals   = 3
	courseDecimals     = 1
	altitudeDecimals   = 1
	dopDecimals        = 2
	vtgSpeedDecimals   = 1
	knotsToKmh         = 1.852
	thousandthsPerDeg  = 60 * 1000
	latitudeDegWidth   = 2
	longitudeDegWidth  = 3
	maxFormatDecimals  = 9
	nanosPerSecond     = 1_000_000_000
	hemisphereNorth    = "N"
	hemisphereSouth    = "S"
	hemisphereEast     = "E"
	hemisphereWest     = "W"
	unitsMeters        = "M"
	referenceTrue      = "T"
	referenceMagnetic  = "M"
	unitsKnots         = "N"
	unitsKmh           = "K"
	statusValid        = "A"
	statusInvalid      = "V"
	modeAutonomous     = "A"
	modeDifferential   = "D"
	modeNotValid       = "N"
	localZoneUnused    = "0"
	gsvSatsPerSentence = 4
	gsaPRNSlots        = 12
)

// FormatLatitude renders signed degrees as DDMM.MMM and a hemisphere letter
func FormatLatitude(deg float64) (string, string, error) {
	return formatCoordinate(deg, 90, latitudeDegWidth, hemisphereNorth, hemisphereSouth)
}

// FormatLongitude renders signed degrees as DDDMM.MMM and a hemisphere letter
func FormatLongitude(deg float64) (string, string, error) {
	return formatCoordinate(deg, 180, longitudeDegWidth, hemisphereEast, hemisphereWest)
}

// formatCoordinate rounds to whole thousandths of a minute first so a value
// such as 54°59.9996' carries into 5500.000 instead of printing 60.000.
func formatCoordinate(deg, limit float64, width int, pos, neg string) (string, string, error) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) || math.Abs(deg) > limit {
		return "", "", fmt.Errorf("%w: coordinate %v outside ±%v", ErrValueOutOfRange, deg, limit)
	}

	total := int64(math.Round(math.Abs(deg) * thousandthsPerDeg))

	// a value that rounds to zero is reported in the positive hemisphere
	hemisphere := pos
	if deg < 0 && total > 0 {
		hemisphere = neg
	}
	degrees := total / thousandthsPerDeg
	rem := total % thousandthsPerDeg

	return fmt.Sprintf("%0*d%02d.%03d", width, degrees, rem/1000, rem%1000), hemisphere, nil
}

// FormatTime renders the UTC time of day as HHMMSS with the given number of
// fractional second digits. The fraction is truncated, not rounded, so the
// seconds field never rolls over.
func FormatTime(t time.Time, decimals int) string {
	t = t.UTC()
	hms := fmt.Sprintf("%02d%02d%02d", t.Hour(), t.Minute(), t.Second())
	if decimals <= 0 {
		return hms
	}
	if decimals > maxFormatDecimals {
		decimals = maxFormatDecimals
	}
	frac := t.Nanosecond() / (nanosPerSecond / pow10(decimals))
	return fmt.Sprintf("%s.%0*d", hms, decimals, frac)
}

// FormatDateRMC renders DDMMYY
func FormatDateRMC(t time.Time) string {
	return t.UTC().Format("020106")
}

// FormatDateZDA renders the DD,MM,YYYY field triple of ZDA
func FormatDateZDA(t time.Time) (string, error) {
	t = t.UTC()
	if t.Year() < 0 || t.Year() > 9999 {
		return "", fmt.Errorf("%w: year %d", ErrValueOutOfRange, t.Year())
	}
	return fmt.Sprintf("%02d,%02d,%04d", t.Day(), int(t.Month()), t.Year()), nil
}

// FormatFloat renders v with a fixed number of decimals, never in
// scientific notation.
func FormatFloat(v float64, decimals int) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: %v is not a finite number", ErrValueOutOfRange, v)
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	// -0.0004 rounds to "-0.000"; receivers print an unsigned zero.
	if strings.HasPrefix(s, "-") && strings.Trim(s[1:], "0.") == "" {
		s = s[1:]
	}
	return s, nil
}

// FormatInt renders a non-negative integer zero-padded to width digits
func FormatInt(v, width int) (string, error) {
	if v < 0 || v >= pow10(width) {
		return "", fmt.Errorf("%w: %d does not fit %d digits", ErrValueOutOfRange, v, width)
	}
	return fmt.Sprintf("%0*d", width, v), nil
}

func pow10(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
