package gps

import (
	"strings"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "Simple GGA sentence",
			body:     "GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,",
			expected: "47",
		},
		{
			name:     "RMC with long minutes",
			body:     "GPRMC,095940.000,A,5432.216088,N,01832.664132,E,0.019,0.00,130720,,,A",
			expected: "59",
		},
		{
			name:     "Empty fields",
			body:     "GPGSA,A,1,,,,,,,,,,,,,,,",
			expected: "1E",
		},
		{
			name:     "Single character",
			body:     "A",
			expected: "41",
		},
		{
			name:     "Empty body",
			body:     "",
			expected: "00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Checksum(tt.body)
			if result != tt.expected {
				t.Errorf("Checksum(%q) = %q, want %q", tt.body, result, tt.expected)
			}
		})
	}
}

func TestSentenceString(t *testing.T) {
	s := Sentence{Talker: "GP", ID: "HDT", Fields: []string{"123.1", "T"}}

	if got := s.Body(); got != "GPHDT,123.1,T" {
		t.Errorf("Body() = %q", got)
	}
	if got := s.Checksum(); got != "34" {
		t.Errorf("Checksum() = %q, want 34", got)
	}
	if got := s.String(); got != "$GPHDT,123.1,T*34\r\n" {
		t.Errorf("String() = %q", got)
	}

	empty := Sentence{Talker: "GP", ID: "HDT", Fields: []string{"", "T"}}
	if got := empty.String(); got != "$GPHDT,,T*1B\r\n" {
		t.Errorf("String() with empty heading = %q", got)
	}
}

func TestVerifyLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{"valid with CRLF", "$GPZDA,120944.000,09,03,2021,0,0*57\r\n", ""},
		{"valid without CRLF", "$GPHDT,123.1,T*34", ""},
		{"VTG", "$GPVTG,123.1,T,,M,12.3,N,22.8,K,A*04", ""},
		{"lower case checksum", "$GPHDT,,T*1b", ""},
		{"missing dollar", "GPHDT,123.1,T*34", "missing '$'"},
		{"missing star", "$GPHDT,123.1,T", "missing checksum"},
		{"short checksum", "$GPHDT,123.1,T*3", "two hex digits"},
		{"not hex", "$GPHDT,123.1,T*ZZ", "bad checksum"},
		{"wrong checksum", "$GPHDT,123.1,T*35", "checksum mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyLine(tt.line)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("VerifyLine(%q) unexpected error: %v", tt.line, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("VerifyLine(%q) error = %v, want containing %q", tt.line, err, tt.wantErr)
			}
		})
	}
}

func TestSplitLineReturnsBody(t *testing.T) {
	body, err := SplitLine("$GPGLL,5425.123,N,01832.664,E,120944.000,A,A*59\r\n")
	if err != nil {
		t.Fatalf("SplitLine failed: %v", err)
	}
	if body != "GPGLL,5425.123,N,01832.664,E,120944.000,A,A" {
		t.Errorf("SplitLine body = %q", body)
	}
}
