// Package sink carries NMEA batches from the emulator to the outside world:
// serial ports, TCP clients, TCP/UDP streams and MQTT brokers.
//
// Every sink is an io.Writer that receives one whole batch per Write, as
// produced by gps.Batch.Bytes.
package sink

import (
	"bytes"
	"errors"
	"io"
	"time"
)

// splitSentences cuts a batch into framed sentences, CRLF kept. A trailing
// fragment without a line ending is returned as its own element.
func splitSentences(p []byte) [][]byte {
	var out [][]byte
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			out = append(out, p)
			break
		}
		out = append(out, p[:i+1])
		p = p[i+1:]
	}
	return out
}

// PacedWriter writes a batch one sentence at a time with a fixed gap
// between sentences
type PacedWriter struct {
	w     io.Writer
	delay time.Duration
	sleep func(time.Duration)
}

// Paced returns w unchanged when delay is not positive
func Paced(w io.Writer, delay time.Duration) io.Writer {
	if delay <= 0 {
		return w
	}
	return &PacedWriter{w: w, delay: delay, sleep: time.Sleep}
}

func (p *PacedWriter) Write(b []byte) (int, error) {
	written := 0
	for i, line := range splitSentences(b) {
		if i > 0 {
			p.sleep(p.delay)
		}
		n, err := p.w.Write(line)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

type multiWriter struct {
	writers []io.Writer
}

// Multi duplicates each batch to all writers. Unlike io.MultiWriter it keeps
// going after a failed writer and reports every failure.
func Multi(writers ...io.Writer) io.Writer {
	all := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			all = append(all, w)
		}
	}
	return &multiWriter{writers: all}
}

func (m *multiWriter) Write(p []byte) (int, error) {
	var errs []error
	for _, w := range m.writers {
		n, err := w.Write(p)
		if err == nil && n < len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return len(p), errors.Join(errs...)
}
