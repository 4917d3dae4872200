// nmea-verify reads an NMEA 0183 stream and checks every sentence with an
// independent parser. It exits with status 1 if any line fails.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/Bucknalla/nmea-gps-emulator/gps"
	"github.com/Bucknalla/nmea-gps-emulator/sink"
)

// report summarizes one verification run
type report struct {
	Lines  int
	Failed int
	Counts map[string]int
}

// verify checks up to limit lines from r, all of them when limit <= 0.
// Each failure is written to errOut with its line number.
func verify(r io.Reader, limit int, errOut io.Writer) (report, error) {
	rep := report{Counts: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rep.Lines++

		if err := gps.VerifyLine(line); err != nil {
			rep.Failed++
			fmt.Fprintf(errOut, "line %d: %v: %q\n", rep.Lines, err, line)
		} else if sentence, err := nmea.Parse(line); err != nil {
			rep.Failed++
			fmt.Fprintf(errOut, "line %d: %v: %q\n", rep.Lines, err, line)
		} else {
			rep.Counts[sentence.DataType()]++
		}

		if limit > 0 && rep.Lines >= limit {
			break
		}
	}
	return rep, scanner.Err()
}

func printReport(w io.Writer, rep report) {
	types := make([]string, 0, len(rep.Counts))
	for t := range rep.Counts {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		fmt.Fprintf(w, "%-4s %d\n", t, rep.Counts[t])
	}
	fmt.Fprintf(w, "%d lines, %d failed\n", rep.Lines, rep.Failed)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("nmea-verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	port := fs.String("serial", "", "Read from this serial port instead of stdin")
	baud := fs.Int("baud", 9600, "Serial port baud rate")
	limit := fs.Int("n", 0, "Stop after this many lines (0 reads to end of input)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nmea-verify [options] [file]\n")
		fmt.Fprintf(stderr, "\nChecks NMEA 0183 sentences read from a file, stdin or a serial port.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var in io.Reader = stdin
	switch {
	case *port != "":
		p, err := sink.OpenSerial(*port, *baud)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer p.Close()
		in = p
	case fs.NArg() == 1:
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer f.Close()
		in = f
	case fs.NArg() > 1:
		fs.Usage()
		return 2
	}

	rep, err := verify(in, *limit, stderr)
	printReport(stdout, rep)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if rep.Failed > 0 {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
