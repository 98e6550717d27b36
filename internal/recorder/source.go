package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/stridesync/stridesync/internal/model"
)

// SampleSource feeds captured location samples into a session. Next
// returns io.EOF when the source is exhausted and the context error
// when recording is cancelled while the source is quiet.
type SampleSource interface {
	Next(ctx context.Context) (model.LocationSample, error)
}

// gpxFile mirrors the subset of the GPX 1.1 schema we replay.
type gpxFile struct {
	XMLName xml.Name `xml:"gpx"`
	Tracks  []struct {
		Segments []struct {
			Points []gpxPoint `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Ele  float64 `xml:"ele"`
	Time string  `xml:"time"`
}

// GPXSource replays a recorded GPX track as a sample stream, deriving
// speed from consecutive points since GPX carries none.
type GPXSource struct {
	samples []model.LocationSample
	pos     int
}

// NewGPXSource parses a GPX document and prepares it for replay.
func NewGPXSource(r io.Reader) (*GPXSource, error) {
	var doc gpxFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	var samples []model.LocationSample
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				s := model.LocationSample{Lat: pt.Lat, Lng: pt.Lon, Elevation: pt.Ele}
				if pt.Time != "" {
					ts, err := time.Parse(time.RFC3339, pt.Time)
					if err != nil {
						return nil, fmt.Errorf("bad trkpt time %q: %w", pt.Time, err)
					}
					s.Time = ts
				}
				samples = append(samples, s)
			}
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("GPX track contains no points")
	}

	for i := 1; i < len(samples); i++ {
		dt := samples[i].Time.Sub(samples[i-1].Time).Seconds()
		if dt <= 0 {
			continue
		}
		d := haversineMeters(samples[i-1].Lat, samples[i-1].Lng, samples[i].Lat, samples[i].Lng)
		samples[i].Speed = d / dt
	}

	return &GPXSource{samples: samples}, nil
}

// Next returns the next track point. Replay is in-memory, so the
// context is only consulted between points by the caller.
func (g *GPXSource) Next(context.Context) (model.LocationSample, error) {
	if g.pos >= len(g.samples) {
		return model.LocationSample{}, io.EOF
	}
	s := g.samples[g.pos]
	g.pos++
	return s, nil
}

// JSONLSource reads one JSON-encoded location sample per line, the
// format a device bridge process streams over stdin.
type JSONLSource struct {
	scanner *bufio.Scanner
	start   sync.Once
	results chan jsonlResult
}

type jsonlResult struct {
	sample model.LocationSample
	err    error
}

// NewJSONLSource wraps a line-delimited JSON stream.
func NewJSONLSource(r io.Reader) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &JSONLSource{scanner: sc, results: make(chan jsonlResult)}
}

// Next returns the next decoded sample, skipping blank lines. The read
// runs on its own goroutine so a cancelled context unblocks the caller
// even while the stream is quiet.
func (j *JSONLSource) Next(ctx context.Context) (model.LocationSample, error) {
	j.start.Do(func() { go j.scan() })
	select {
	case <-ctx.Done():
		return model.LocationSample{}, ctx.Err()
	case r, ok := <-j.results:
		if !ok {
			return model.LocationSample{}, io.EOF
		}
		return r.sample, r.err
	}
}

func (j *JSONLSource) scan() {
	defer close(j.results)
	for j.scanner.Scan() {
		line := j.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var s model.LocationSample
		if err := json.Unmarshal(line, &s); err != nil {
			j.results <- jsonlResult{err: fmt.Errorf("bad sample line: %w", err)}
			return
		}
		j.results <- jsonlResult{sample: s}
	}
	if err := j.scanner.Err(); err != nil {
		j.results <- jsonlResult{err: err}
	}
}
