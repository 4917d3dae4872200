package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Builder maps an epoch onto the fields of one sentence type. GSV is the
// only builder that returns more than one sentence.
type Builder interface {
	ID() string
	Build(talker string, ep Epoch) ([]Sentence, error)
}

// Sentence builders, one per supported type
type (
	GGA struct{}
	GSA struct{}
	GSV struct{}
	GLL struct{}
	RMC struct{}
	HDT struct{}
	VTG struct{}
	ZDA struct{}
)

// StandardBuilders returns the builders in output order: GGA, GSA, GSV,
// GLL, RMC, HDT, optionally VTG, then ZDA.
func StandardBuilders(withVTG bool) []Builder {
	b := []Builder{GGA{}, GSA{}, GSV{}, GLL{}, RMC{}, HDT{}}
	if withVTG {
		b = append(b, VTG{})
	}
	return append(b, ZDA{})
}

func (GGA) ID() string { return "GGA" }
func (GSA) ID() string { return "GSA" }
func (GSV) ID() string { return "GSV" }
func (GLL) ID() string { return "GLL" }
func (RMC) ID() string { return "RMC" }
func (HDT) ID() string { return "HDT" }
func (VTG) ID() string { return "VTG" }
func (ZDA) ID() string { return "ZDA" }

// Build emits the fix data sentence
func (g GGA) Build(talker string, ep Epoch) ([]Sentence, error) {
	count, err := FormatInt(ep.Satellites.UsedCount(), 2)
	if err != nil {
		return nil, fmt.Errorf("GGA satellites in use: %w", err)
	}

	fields := make([]string, 14)
	fields[0] = FormatTime(ep.Fix.Time, ggaTimeDecimals)
	fields[5] = "0"
	fields[6] = count
	// fields[12] and [13], DGPS age and station, stay empty

	if ep.HasFix() {
		if fields[1], fields[2], fields[3], fields[4], err = positionFields(ep.Fix); err != nil {
			return nil, fmt.Errorf("GGA: %w", err)
		}
		fields[5] = "1"
		if ep.Quality.Differential {
			fields[5] = "2"
		}
		if fields[7], err = FormatFloat(ep.Quality.HDOP, dopDecimals); err != nil {
			return nil, fmt.Errorf("GGA hdop: %w", err)
		}
		if fields[8], err = FormatFloat(ep.Fix.Altitude, altitudeDecimals); err != nil {
			return nil, fmt.Errorf("GGA altitude: %w", err)
		}
		fields[9] = unitsMeters
		if fields[10], err = FormatFloat(ep.Quality.GeoidSeparation, altitudeDecimals); err != nil {
			return nil, fmt.Errorf("GGA geoid separation: %w", err)
		}
		fields[11] = unitsMeters
	}

	return one(talker, g.ID(), fields), nil
}

// Build emits the DOP and active satellites sentence
func (g GSA) Build(talker string, ep Epoch) ([]Sentence, error) {
	used := ep.Satellites.Used()
	if len(used) > gsaPRNSlots {
		return nil, fmt.Errorf("GSA: %w: %d satellites used", ErrInvalidSatelliteCount, len(used))
	}

	mode := ep.Quality.SelectionMode
	if mode == "" {
		mode = "A"
	}

	fields := make([]string, 0, 17)
	fields = append(fields, mode, strconv.Itoa(fixType(len(used))))
	for i := 0; i < gsaPRNSlots; i++ {
		if i >= len(used) {
			fields = append(fields, "")
			continue
		}
		prn, err := FormatInt(used[i].PRN, 2)
		if err != nil {
			return nil, fmt.Errorf("GSA prn: %w", err)
		}
		fields = append(fields, prn)
	}

	dops := []string{"", "", ""}
	if len(used) > 0 {
		for i, v := range []float64{ep.Quality.PDOP, ep.Quality.HDOP, ep.Quality.VDOP} {
			s, err := FormatFloat(v, dopDecimals)
			if err != nil {
				return nil, fmt.Errorf("GSA dop: %w", err)
			}
			dops[i] = s
		}
	}
	fields = append(fields, dops...)

	return one(talker, g.ID(), fields), nil
}

// Build emits one satellites-in-view sentence per group of four
// satellites. An empty sky still yields a single "1 of 1" sentence.
func (g GSV) Build(talker string, ep Epoch) ([]Sentence, error) {
	sats := ep.Satellites
	total := len(sats)
	messages := (total + gsvSatsPerSentence - 1) / gsvSatsPerSentence
	if messages == 0 {
		messages = 1
	}
	if messages > 9 {
		return nil, fmt.Errorf("GSV: %w: %d satellites need %d messages", ErrInvalidSatelliteCount, total, messages)
	}

	inView, err := FormatInt(total, 2)
	if err != nil {
		return nil, fmt.Errorf("GSV: %w", err)
	}

	sentences := make([]Sentence, 0, messages)
	for msg := 1; msg <= messages; msg++ {
		fields := make([]string, 0, 3+4*gsvSatsPerSentence)
		fields = append(fields, strconv.Itoa(messages), strconv.Itoa(msg), inView)

		start := (msg - 1) * gsvSatsPerSentence
		for i := start; i < start+gsvSatsPerSentence; i++ {
			if i >= total {
				fields = append(fields, "", "", "", "")
				continue
			}
			satFields, err := satelliteFields(sats[i])
			if err != nil {
				return nil, fmt.Errorf("GSV: %w", err)
			}
			fields = append(fields, satFields...)
		}

		sentences = append(sentences, Sentence{Talker: talker, ID: g.ID(), Fields: fields})
	}

	return sentences, nil
}

// Build emits the geographic position sentence
func (g GLL) Build(talker string, ep Epoch) ([]Sentence, error) {
	fields := make([]string, 7)
	fields[4] = FormatTime(ep.Fix.Time, fixTimeDecimals)
	fields[5] = statusInvalid
	fields[6] = modeNotValid

	if ep.HasFix() {
		var err error
		if fields[0], fields[1], fields[2], fields[3], err = positionFields(ep.Fix); err != nil {
			return nil, fmt.Errorf("GLL: %w", err)
		}
		fields[5] = statusValid
		fields[6] = modeIndicator(ep.Quality)
	}

	return one(talker, g.ID(), fields), nil
}

// Build emits the recommended minimum sentence
func (g RMC) Build(talker string, ep Epoch) ([]Sentence, error) {
	fields := make([]string, 12)
	fields[0] = FormatTime(ep.Fix.Time, fixTimeDecimals)
	fields[1] = statusInvalid
	fields[8] = FormatDateRMC(ep.Fix.Time)
	// fields[9] and [10], magnetic variation, are not simulated
	fields[11] = modeNotValid

	if ep.HasFix() {
		var err error
		if fields[2], fields[3], fields[4], fields[5], err = positionFields(ep.Fix); err != nil {
			return nil, fmt.Errorf("RMC: %w", err)
		}
		if fields[6], err = FormatFloat(ep.Fix.Speed, rmcSpeedDecimals); err != nil {
			return nil, fmt.Errorf("RMC speed: %w", err)
		}
		if fields[7], err = formatCourse(ep.Fix.Course); err != nil {
			return nil, fmt.Errorf("RMC course: %w", err)
		}
		fields[1] = statusValid
		fields[11] = modeIndicator(ep.Quality)
	}

	return one(talker, g.ID(), fields), nil
}

// Build emits the true heading sentence
func (g HDT) Build(talker string, ep Epoch) ([]Sentence, error) {
	heading := ""
	if ep.HasFix() {
		var err error
		if heading, err = formatCourse(ep.Fix.Course); err != nil {
			return nil, fmt.Errorf("HDT: %w", err)
		}
	}
	return one(talker, g.ID(), []string{heading, referenceTrue}), nil
}

// Build emits the track made good and ground speed sentence
func (g VTG) Build(talker string, ep Epoch) ([]Sentence, error) {
	fields := []string{"", referenceTrue, "", referenceMagnetic, "", unitsKnots, "", unitsKmh, modeNotValid}

	if ep.HasFix() {
		var err error
		if fields[0], err = formatCourse(ep.Fix.Course); err != nil {
			return nil, fmt.Errorf("VTG course: %w", err)
		}
		if fields[4], err = FormatFloat(ep.Fix.Speed, vtgSpeedDecimals); err != nil {
			return nil, fmt.Errorf("VTG speed: %w", err)
		}
		if fields[6], err = FormatFloat(ep.Fix.Speed*knotsToKmh, vtgSpeedDecimals); err != nil {
			return nil, fmt.Errorf("VTG speed: %w", err)
		}
		fields[8] = modeIndicator(ep.Quality)
	}

	return one(talker, g.ID(), fields), nil
}

// Build emits the time and date sentence. The local zone is not
// simulated and both offset fields are "0".
func (g ZDA) Build(talker string, ep Epoch) ([]Sentence, error) {
	date, err := FormatDateZDA(ep.Fix.Time)
	if err != nil {
		return nil, fmt.Errorf("ZDA: %w", err)
	}

	fields := []string{FormatTime(ep.Fix.Time, fixTimeDecimals)}
	fields = append(fields, strings.Split(date, ",")...)
	fields = append(fields, localZoneUnused, localZoneUnused)

	return one(talker, g.ID(), fields), nil
}

func one(talker, id string, fields []string) []Sentence {
	return []Sentence{{Talker: talker, ID: id, Fields: fields}}
}

func positionFields(f Fix) (lat, ns, lon, ew string, err error) {
	if lat, ns, err = FormatLatitude(f.Latitude); err != nil {
		return "", "", "", "", err
	}
	if lon, ew, err = FormatLongitude(f.Longitude); err != nil {
		return "", "", "", "", err
	}
	return lat, ns, lon, ew, nil
}

func satelliteFields(sat Satellite) ([]string, error) {
	prn, err := FormatInt(sat.PRN, 2)
	if err != nil {
		return nil, fmt.Errorf("prn: %w", err)
	}
	elev, err := FormatInt(sat.Elevation, 2)
	if err != nil || sat.Elevation > 90 {
		return nil, fmt.Errorf("%w: elevation %d of PRN %d", ErrValueOutOfRange, sat.Elevation, sat.PRN)
	}
	az, err := FormatInt(sat.Azimuth, 3)
	if err != nil || sat.Azimuth > 359 {
		return nil, fmt.Errorf("%w: azimuth %d of PRN %d", ErrValueOutOfRange, sat.Azimuth, sat.PRN)
	}
	snr, err := FormatInt(sat.SNR, 2)
	if err != nil {
		return nil, fmt.Errorf("snr: %w", err)
	}
	return []string{prn, elev, az, snr}, nil
}

// formatCourse keeps 359.96 from printing as 360.0
func formatCourse(c float64) (string, error) {
	if !finite(c) || c < 0 || c >= 360 {
		return "", fmt.Errorf("%w: course %v", ErrValueOutOfRange, c)
	}
	if math.Round(c*10) >= 3600 {
		c = 0
	}
	return FormatFloat(c, courseDecimals)
}

// fixType is the GSA fix dimension: 1 none, 2 two-dimensional, 3 three-dimensional
func fixType(used int) int {
	switch {
	case used == 0:
		return 1
	case used < 4:
		return 2
	default:
		return 3
	}
}

func modeIndicator(q Quality) string {
	if q.Differential {
		return modeDifferential
	}
	return modeAutonomous
}
