// Package analysis reads position tracking data recorded from video of the
// robot walking, and works out how fast it went.
package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "analysis",
})

// Tracking files start with two header lines (the object name and the column
// names), which carry nothing we need.
const headerLines = 2

var ErrTooShort = errors.New("track needs at least two samples spanning some time")

// Track is a sequence of (time, x, y) samples of one object, in seconds and
// centimetres.
type Track struct {
	Name string
	Time []float64
	X    []float64
	Y    []float64
}

func (t *Track) Len() int {
	return len(t.Time)
}

// ParseTrack reads semicolon-separated "time;x;y" records, after the headers.
// Extra columns are ignored, blank lines are skipped.
func ParseTrack(r io.Reader, name string) (*Track, error) {
	t := &Track{Name: name}

	rd := csv.NewReader(r)
	rd.Comma = ';'
	rd.FieldsPerRecord = -1
	rd.LazyQuotes = true
	rd.TrimLeadingSpace = true

	n := 0
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		n += 1
		if n <= headerLines {
			continue
		}

		line, _ := rd.FieldPos(0)
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("%s:%d: want at least 3 fields, got %d", name, line, len(rec))
		}

		var v [3]float64
		for i := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: field %d: %w", name, line, i+1, err)
			}
			v[i] = f
		}

		t.Time = append(t.Time, v[0])
		t.X = append(t.X, v[1])
		t.Y = append(t.Y, v[2])
	}

	return t, nil
}

func LoadTrack(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseTrack(f, filepath.Base(path))
}

// Normalize shifts the track so that it starts at the origin.
func (t *Track) Normalize() {
	if t.Len() == 0 {
		return
	}

	x0, y0 := t.X[0], t.Y[0]
	for i := range t.X {
		t.X[i] -= x0
		t.Y[i] -= y0
	}
}

// AverageSpeed returns the straight-line distance between the first and last
// positions, divided by the time between them. Wandering in between doesn't
// count.
func (t *Track) AverageSpeed() (float64, error) {
	n := t.Len()
	if n < 2 {
		return 0, ErrTooShort
	}

	dt := t.Time[n-1] - t.Time[0]
	if !(dt > 0) {
		return 0, ErrTooShort
	}

	d := math.Hypot(t.X[n-1]-t.X[0], t.Y[n-1]-t.Y[0])
	return d / dt, nil
}

// Line is y = Intercept + Slope*t.
type Line struct {
	Intercept float64
	Slope     float64
}

func (l Line) At(t float64) float64 {
	return l.Intercept + l.Slope*t
}

// Fit is the least-squares trend of each coordinate over time. The slopes are
// the average velocity along each axis.
type Fit struct {
	X Line
	Y Line
}

func (t *Track) Fit() (Fit, error) {
	if t.Len() < 2 {
		return Fit{}, ErrTooShort
	}

	var f Fit
	f.X.Intercept, f.X.Slope = stat.LinearRegression(t.Time, t.X, nil, false)
	f.Y.Intercept, f.Y.Slope = stat.LinearRegression(t.Time, t.Y, nil, false)

	if math.IsNaN(f.X.Slope) || math.IsNaN(f.Y.Slope) {
		return Fit{}, ErrTooShort
	}

	return f, nil
}

// Result is the analysis of one track.
type Result struct {
	Name  string
	Speed float64
	Fit   Fit
}

// Summary is the analysis of several runs of the same gait.
type Summary struct {
	Results []Result

	// The mean of the average speeds.
	MeanSpeed float64
}

// Analyze normalizes each track, and works out its speed and trend. Any track
// which can't be analyzed fails the whole summary.
func Analyze(tracks []*Track) (*Summary, error) {
	if len(tracks) == 0 {
		return nil, errors.New("no tracks to analyze")
	}

	s := &Summary{}
	total := 0.0

	for _, t := range tracks {
		t.Normalize()

		speed, err := t.AverageSpeed()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}

		fit, err := t.Fit()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}

		log.Debugf("%s: samples=%d speed=%.4f", t.Name, t.Len(), speed)
		s.Results = append(s.Results, Result{Name: t.Name, Speed: speed, Fit: fit})
		total += speed
	}

	s.MeanSpeed = total / float64(len(tracks))
	return s, nil
}
