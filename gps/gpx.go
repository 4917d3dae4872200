package gps

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// GPX is the subset of a GPX 1.1 document the emulator reads and writes
type GPX struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Track   Track    `xml:"trk"`
	Routes  []Route  `xml:"rte"`
}

// Track represents a GPX track
type Track struct {
	Name         string       `xml:"name"`
	TrackSegment TrackSegment `xml:"trkseg"`
}

// TrackSegment represents a segment of a GPX track
type TrackSegment struct {
	TrackPoints []TrackPoint `xml:"trkpt"`
}

// Route represents a GPX route. Its points share the TrackPoint layout.
type Route struct {
	Name        string       `xml:"name"`
	RoutePoints []TrackPoint `xml:"rtept"`
}

// GPXWriter records emitted fixes as a GPX track. The whole document is
// rewritten on every flush so the file stays valid if the process dies.
type GPXWriter struct {
	filename string
	gpx      *GPX
	file     *os.File
}

// NewGPXWriter creates filename and an empty track
func NewGPXWriter(filename string) (*GPXWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}

	return &GPXWriter{
		filename: filename,
		file:     file,
		gpx: &GPX{
			Version: "1.1",
			Creator: "nmea-gps-emulator",
			Xmlns:   "http://www.topografix.com/GPX/1/1",
			Track:   Track{Name: "NMEA emulator track"},
		},
	}, nil
}

// AddFix appends the position of f at its own timestamp
func (w *GPXWriter) AddFix(f Fix) {
	w.gpx.Track.TrackSegment.TrackPoints = append(w.gpx.Track.TrackSegment.TrackPoints, TrackPoint{
		Lat:       f.Latitude,
		Lon:       f.Longitude,
		Elevation: f.Altitude,
		Time:      f.Time.UTC(),
	})
}

// Flush rewrites the file with every point recorded so far
func (w *GPXWriter) Flush() error {
	if w.file == nil {
		return os.ErrClosed
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek GPX file: %w", err)
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate GPX file: %w", err)
	}
	if err := writeGPX(w.file, w.gpx); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes the track and closes the file. Calling it twice is harmless.
func (w *GPXWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.Flush()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}

// Reopen opens the file again after Close. Points recorded before Close are
// kept and rewritten with the new ones on the next flush.
func (w *GPXWriter) Reopen() error {
	if w.file != nil {
		return nil
	}
	file, err := os.OpenFile(w.filename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return fmt.Errorf("failed to reopen GPX file %s: %w", w.filename, err)
	}
	w.file = file
	return nil
}

// PointCount returns the number of recorded points
func (w *GPXWriter) PointCount() int {
	return len(w.gpx.Track.TrackSegment.TrackPoints)
}

// Filename returns the path the track is written to
func (w *GPXWriter) Filename() string {
	return w.filename
}

func writeGPX(out io.Writer, doc *GPX) error {
	if _, err := io.WriteString(out, xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}
	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}
	return nil
}

// ReadGPXFile loads the points of the first track, or of the first route
// when the file has no track.
func ReadGPXFile(filename string) ([]TrackPoint, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPX file %s: %w", filename, err)
	}
	defer file.Close()

	points, err := ReadGPX(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return points, nil
}

// ReadGPX decodes a GPX document from r
func ReadGPX(r io.Reader) ([]TrackPoint, error) {
	var doc GPX
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	points := doc.Track.TrackSegment.TrackPoints
	if len(points) == 0 && len(doc.Routes) > 0 {
		points = doc.Routes[0].RoutePoints
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no track points or route points found")
	}

	for i, p := range points {
		if !finite(p.Lat) || p.Lat < -90 || p.Lat > 90 || !finite(p.Lon) || p.Lon < -180 || p.Lon > 180 {
			return nil, fmt.Errorf("point %d: %w: %v,%v", i, ErrValueOutOfRange, p.Lat, p.Lon)
		}
	}
	return points, nil
}
