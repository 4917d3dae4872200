package gps

import (
	"strings"
	"testing"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// referenceEpoch is a tracked fix with 15 satellites, the first 12 in use
func referenceEpoch() Epoch {
	prns := []int{20, 30, 10, 21, 3, 2, 19, 8, 12, 26, 24, 22, 9, 1, 25}
	sats := make(SatelliteSet, len(prns))
	for i, prn := range prns {
		sats[i] = Satellite{PRN: prn, Elevation: 80, Azimuth: 349, SNR: 89, Used: i < 12}
	}
	return Epoch{
		Fix: Fix{
			Latitude:  54 + 25.123/60,
			Longitude: 18 + 32.664/60,
			Altitude:  15.2,
			Speed:     12.3,
			Course:    123.1,
			Time:      time.Date(2021, 3, 9, 12, 9, 44, 0, time.UTC),
		},
		Satellites: sats,
		Quality: Quality{
			PDOP:            1.56,
			HDOP:            0.92,
			VDOP:            1.25,
			GeoidSeparation: 32.5,
			SelectionMode:   "A",
		},
	}
}

// noFixEpoch has satellites in view but none used
func noFixEpoch() Epoch {
	ep := referenceEpoch()
	for i := range ep.Satellites {
		ep.Satellites[i].Used = false
	}
	return ep
}

func buildLines(t *testing.T, b Builder, ep Epoch) []string {
	t.Helper()
	sentences, err := b.Build(DefaultTalker, ep)
	if err != nil {
		t.Fatalf("%s.Build failed: %v", b.ID(), err)
	}
	lines := make([]string, len(sentences))
	for i, s := range sentences {
		lines[i] = s.String()
	}
	return lines
}

func TestBuildersReferenceOutput(t *testing.T) {
	tests := []struct {
		builder  Builder
		expected string
	}{
		{GGA{}, "$GPGGA,120944.00,5425.123,N,01832.664,E,1,12,0.92,15.2,M,32.5,M,,*66\r\n"},
		{GLL{}, "$GPGLL,5425.123,N,01832.664,E,120944.000,A,A*59\r\n"},
		{RMC{}, "$GPRMC,120944.000,A,5425.123,N,01832.664,E,12.300,123.1,090321,,,A*56\r\n"},
		{HDT{}, "$GPHDT,123.1,T*34\r\n"},
		{ZDA{}, "$GPZDA,120944.000,09,03,2021,0,0*57\r\n"},
		{VTG{}, "$GPVTG,123.1,T,,M,12.3,N,22.8,K,A*04\r\n"},
		{GSA{}, "$GPGSA,A,3,20,30,10,21,03,02,19,08,12,26,24,22,1.56,0.92,1.25*" +
			Checksum("GPGSA,A,3,20,30,10,21,03,02,19,08,12,26,24,22,1.56,0.92,1.25") + "\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.builder.ID(), func(t *testing.T) {
			lines := buildLines(t, tt.builder, referenceEpoch())
			if len(lines) != 1 {
				t.Fatalf("Expected 1 sentence, got %d", len(lines))
			}
			if lines[0] != tt.expected {
				t.Errorf("got  %q\nwant %q", lines[0], tt.expected)
			}
		})
	}
}

func TestGSVGroups(t *testing.T) {
	lines := buildLines(t, GSV{}, referenceEpoch())

	expected := []string{
		"$GPGSV,4,1,15,20,80,349,89,30,80,349,89,10,80,349,89,21,80,349,89*7B\r\n",
		"$GPGSV,4,2,15,03,80,349,89,02,80,349,89,19,80,349,89,08,80,349,89*7A\r\n",
		"$GPGSV,4,3,15,12,80,349,89,26,80,349,89,24,80,349,89,22,80,349,89*7B\r\n",
		"$GPGSV,4,4,15,09,80,349,89,01,80,349,89,25,80,349,89,,,,*45\r\n",
	}
	if len(lines) != len(expected) {
		t.Fatalf("Expected %d GSV sentences, got %d", len(expected), len(lines))
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("GSV %d:\ngot  %q\nwant %q", i+1, lines[i], expected[i])
		}
	}
}

func TestGSVCounts(t *testing.T) {
	for _, visible := range []int{0, 1, 3, 4, 5, 8, 12, 13, 32} {
		sats := make(SatelliteSet, visible)
		for i := range sats {
			sats[i] = Satellite{PRN: i + 1, Elevation: 45, Azimuth: 7, SNR: 40, Used: i < 12}
		}
		ep := referenceEpoch()
		ep.Satellites = sats

		lines := buildLines(t, GSV{}, ep)

		wantMessages := (visible + 3) / 4
		if wantMessages == 0 {
			wantMessages = 1
		}
		if len(lines) != wantMessages {
			t.Errorf("%d visible: got %d messages, want %d", visible, len(lines), wantMessages)
		}

		seen := map[string]int{}
		for i, line := range lines {
			if err := VerifyLine(line); err != nil {
				t.Errorf("%d visible: %v", visible, err)
			}
			fields := strings.Split(line[1:strings.IndexByte(line, '*')], ",")
			if len(fields) != 20 {
				t.Errorf("%d visible: message %d has %d fields, want 20", visible, i+1, len(fields))
				continue
			}
			if fields[3] != pad2(visible) {
				t.Errorf("%d visible: satellites in view field %q", visible, fields[3])
			}
			for slot := 0; slot < 4; slot++ {
				if prn := fields[4+slot*4]; prn != "" {
					seen[prn]++
				}
			}
		}
		if len(seen) != visible {
			t.Errorf("%d visible: GSV listed %d distinct PRNs", visible, len(seen))
		}
		for prn, n := range seen {
			if n != 1 {
				t.Errorf("%d visible: PRN %s listed %d times", visible, prn, n)
			}
		}
	}
}

func pad2(n int) string {
	s, _ := FormatInt(n, 2)
	return s
}

func TestGSVEmptySky(t *testing.T) {
	ep := referenceEpoch()
	ep.Satellites = nil

	lines := buildLines(t, GSV{}, ep)
	if len(lines) != 1 || lines[0] != "$GPGSV,1,1,00,,,,,,,,,,,,,,,,*79\r\n" {
		t.Errorf("Empty sky GSV = %q", lines)
	}
}

func TestBuildersNoFix(t *testing.T) {
	ep := noFixEpoch()
	ep.Fix.Time = time.Date(2024, 3, 15, 6, 58, 35, 0, time.UTC)

	tests := []struct {
		builder  Builder
		expected string
	}{
		{GGA{}, "$GPGGA,065835.00,,,,,0,00,,,,,,,*45\r\n"},
		{GSA{}, "$GPGSA,A,1,,,,,,,,,,,,,,,*1E\r\n"},
		{GLL{}, "$GPGLL,,,,,065835.000,V,N*77\r\n"},
		{RMC{}, "$GPRMC,065835.000,V,,,,,,,150324,,,N*41\r\n"},
		{HDT{}, "$GPHDT,,T*1B\r\n"},
		{VTG{}, "$GPVTG,,T,,M,,N,,K,N*2C\r\n"},
		{ZDA{}, "$GPZDA,065835.000,15,03,2024,0,0*58\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.builder.ID(), func(t *testing.T) {
			lines := buildLines(t, tt.builder, ep)
			if len(lines) != 1 || lines[0] != tt.expected {
				t.Errorf("got  %q\nwant %q", lines, tt.expected)
			}
		})
	}
}

func TestCommaCountIsConstant(t *testing.T) {
	want := map[string]int{
		"GGA": 14, "GSA": 17, "GSV": 19, "GLL": 7, "RMC": 12, "HDT": 2, "VTG": 9, "ZDA": 6,
	}

	partial := referenceEpoch()
	for i := range partial.Satellites {
		partial.Satellites[i].Used = i < 2
	}

	for _, ep := range []Epoch{referenceEpoch(), noFixEpoch(), partial} {
		for _, b := range StandardBuilders(true) {
			for _, line := range buildLines(t, b, ep) {
				if got := strings.Count(line, ","); got != want[b.ID()] {
					t.Errorf("%s has %d commas, want %d: %q", b.ID(), got, want[b.ID()], line)
				}
			}
		}
	}
}

func TestGSAFixType(t *testing.T) {
	tests := []struct {
		used     int
		expected string
	}{
		{0, "1"},
		{1, "2"},
		{3, "2"},
		{4, "3"},
		{12, "3"},
	}

	for _, tt := range tests {
		ep := referenceEpoch()
		for i := range ep.Satellites {
			ep.Satellites[i].Used = i < tt.used
		}
		sentences, err := GSA{}.Build(DefaultTalker, ep)
		if err != nil {
			t.Fatalf("GSA.Build failed: %v", err)
		}
		if got := sentences[0].Fields[1]; got != tt.expected {
			t.Errorf("%d used: fix type %s, want %s", tt.used, got, tt.expected)
		}
	}
}

func TestGSATooManyUsed(t *testing.T) {
	ep := referenceEpoch()
	for i := range ep.Satellites {
		ep.Satellites[i].Used = true
	}
	if _, err := (GSA{}).Build(DefaultTalker, ep); err == nil {
		t.Error("Expected an error for 15 used satellites")
	}
}

func TestDifferentialQuality(t *testing.T) {
	ep := referenceEpoch()
	ep.Quality.Differential = true

	gga, err := GGA{}.Build(DefaultTalker, ep)
	if err != nil {
		t.Fatalf("GGA.Build failed: %v", err)
	}
	if gga[0].Fields[5] != "2" {
		t.Errorf("GGA quality = %s, want 2", gga[0].Fields[5])
	}

	rmc, err := RMC{}.Build(DefaultTalker, ep)
	if err != nil {
		t.Fatalf("RMC.Build failed: %v", err)
	}
	if rmc[0].Fields[11] != "D" {
		t.Errorf("RMC mode = %s, want D", rmc[0].Fields[11])
	}
}

func TestCourseNeverPrints360(t *testing.T) {
	ep := referenceEpoch()
	ep.Fix.Course = 359.96

	hdt, err := HDT{}.Build(DefaultTalker, ep)
	if err != nil {
		t.Fatalf("HDT.Build failed: %v", err)
	}
	if hdt[0].Fields[0] != "0.0" {
		t.Errorf("HDT heading = %s, want 0.0", hdt[0].Fields[0])
	}
}

func TestBuilderRejectsBadSatellite(t *testing.T) {
	tests := []struct {
		name string
		sat  Satellite
	}{
		{"PRN too wide", Satellite{PRN: 100, Elevation: 10, Azimuth: 10, SNR: 10}},
		{"elevation above zenith", Satellite{PRN: 1, Elevation: 91, Azimuth: 10, SNR: 10}},
		{"azimuth full circle", Satellite{PRN: 1, Elevation: 10, Azimuth: 360, SNR: 10}},
		{"negative SNR", Satellite{PRN: 1, Elevation: 10, Azimuth: 10, SNR: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := referenceEpoch()
			ep.Satellites = SatelliteSet{tt.sat}
			if _, err := (GSV{}).Build(DefaultTalker, ep); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestBuildersParseWithGoNMEA(t *testing.T) {
	ep := referenceEpoch()

	for _, b := range StandardBuilders(true) {
		for _, line := range buildLines(t, b, ep) {
			s, err := nmea.Parse(strings.TrimRight(line, "\r\n"))
			if err != nil {
				t.Fatalf("go-nmea rejected %q: %v", line, err)
			}

			switch m := s.(type) {
			case nmea.GGA:
				if m.NumSatellites != 12 || m.HDOP != 0.92 || m.Altitude != 15.2 || m.FixQuality != "1" {
					t.Errorf("GGA parsed as %+v", m)
				}
				if diff := m.Latitude - ep.Fix.Latitude; diff > 1e-6 || diff < -1e-6 {
					t.Errorf("GGA latitude %v, want %v", m.Latitude, ep.Fix.Latitude)
				}
			case nmea.RMC:
				if m.Validity != "A" || m.Speed != 12.3 || m.Course != 123.1 {
					t.Errorf("RMC parsed as %+v", m)
				}
				if m.Date.DD != 9 || m.Date.MM != 3 || m.Date.YY != 21 {
					t.Errorf("RMC date %+v", m.Date)
				}
			case nmea.GSA:
				if len(m.SV) != 12 || m.FixType != "3" || m.PDOP != 1.56 {
					t.Errorf("GSA parsed as %+v", m)
				}
			case nmea.GSV:
				if m.NumberSVsInView != 15 || m.TotalMessages != 4 {
					t.Errorf("GSV parsed as %+v", m)
				}
			case nmea.ZDA:
				if m.Day != 9 || m.Month != 3 || m.Year != 2021 {
					t.Errorf("ZDA parsed as %+v", m)
				}
			case nmea.HDT:
				if m.Heading != 123.1 || !m.True {
					t.Errorf("HDT parsed as %+v", m)
				}
			case nmea.VTG:
				if m.TrueTrack != 123.1 || m.GroundSpeedKnots != 12.3 {
					t.Errorf("VTG parsed as %+v", m)
				}
			}
		}
	}
}
