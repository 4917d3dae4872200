package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Bucknalla/nmea-gps-emulator/gps"
)

const goodStream = "$GPGGA,120944.00,5425.123,N,01832.664,E,1,12,0.92,15.2,M,32.5,M,,*66\r\n" +
	"$GPHDT,123.1,T*34\r\n" +
	"\r\n" +
	"$GPZDA,120944.000,09,03,2021,0,0*57\r\n" +
	"$GPHDT,,T*1B\r\n"

func TestVerifyGoodStream(t *testing.T) {
	var errOut bytes.Buffer
	rep, err := verify(strings.NewReader(goodStream), 0, &errOut)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if rep.Lines != 4 || rep.Failed != 0 {
		t.Errorf("Lines %d failed %d, errors:\n%s", rep.Lines, rep.Failed, errOut.String())
	}
	if rep.Counts["GGA"] != 1 || rep.Counts["HDT"] != 2 || rep.Counts["ZDA"] != 1 {
		t.Errorf("Counts = %v", rep.Counts)
	}
}

func TestVerifyReportsBadLines(t *testing.T) {
	stream := "$GPHDT,123.1,T*35\r\n" + // wrong checksum
		"GPHDT,123.1,T*34\r\n" + // no dollar
		"$GPXYZ,1,2*" + gps.Checksum("GPXYZ,1,2") + "\r\n" + // unknown type
		"$GPHDT,123.1,T*34\r\n"

	var errOut bytes.Buffer
	rep, err := verify(strings.NewReader(stream), 0, &errOut)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if rep.Lines != 4 || rep.Failed != 3 || rep.Counts["HDT"] != 1 {
		t.Errorf("Unexpected report %+v", rep)
	}
	for _, want := range []string{"line 1:", "line 2:", "line 3:"} {
		if !strings.Contains(errOut.String(), want) {
			t.Errorf("Error output missing %q:\n%s", want, errOut.String())
		}
	}
}

func TestVerifyLimit(t *testing.T) {
	rep, err := verify(strings.NewReader(goodStream), 2, io.Discard)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if rep.Lines != 2 {
		t.Errorf("Expected 2 lines, got %d", rep.Lines)
	}
}

func TestVerifyEmitterOutput(t *testing.T) {
	cfg := gps.DefaultConfig()
	cfg.StartTime = time.Date(2024, 3, 15, 6, 58, 34, 0, time.UTC)
	cfg.TimeToLock = 0
	cfg.VTG = true

	sim, err := gps.NewSimulator(cfg)
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}
	var stream bytes.Buffer
	sim.SetNMEAWriter(&stream)
	for i := 0; i < 30; i++ {
		if _, err := sim.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	var errOut bytes.Buffer
	rep, err := verify(&stream, 0, &errOut)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if rep.Failed != 0 {
		t.Errorf("%d emitted lines failed:\n%s", rep.Failed, errOut.String())
	}
	for _, typ := range []string{"GGA", "GSA", "GLL", "RMC", "HDT", "VTG", "ZDA"} {
		if rep.Counts[typ] != 30 {
			t.Errorf("%s count %d, want 30", typ, rep.Counts[typ])
		}
	}
	if rep.Counts["GSV"] < 30 {
		t.Errorf("GSV count %d, want at least one per batch", rep.Counts["GSV"])
	}
}

func TestRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, strings.NewReader(goodStream), &stdout, &stderr); code != 0 {
		t.Errorf("Exit code %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "4 lines, 0 failed") {
		t.Errorf("Unexpected summary:\n%s", stdout.String())
	}

	stdout.Reset()
	if code := run(nil, strings.NewReader("$GPHDT,123.1,T*35\r\n"), &stdout, io.Discard); code != 1 {
		t.Errorf("Expected exit code 1 for a bad stream, got %d", code)
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.nmea")
	if err := os.WriteFile(path, []byte(goodStream), 0644); err != nil {
		t.Fatalf("Failed to write capture: %v", err)
	}

	var stdout bytes.Buffer
	if code := run([]string{path}, strings.NewReader(""), &stdout, io.Discard); code != 0 {
		t.Errorf("Exit code %d", code)
	}
	if !strings.Contains(stdout.String(), "HDT  2") {
		t.Errorf("Unexpected report:\n%s", stdout.String())
	}

	if code := run([]string{filepath.Join(t.TempDir(), "missing")}, nil, io.Discard, io.Discard); code != 2 {
		t.Errorf("Expected exit code 2 for a missing file, got %d", code)
	}
	if code := run([]string{"-serial", "/dev/does-not-exist"}, nil, io.Discard, io.Discard); code != 2 {
		t.Errorf("Expected exit code 2 for a missing port, got %d", code)
	}
}
