package analysis

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wag = `mass A
t;x;y
0.0;10.0;5.0
1.0;13.0;9.0

2.0;16.0;13.0
`

func TestParseTrack(t *testing.T) {
	tr, err := ParseTrack(strings.NewReader(wag), "wag1")
	require.NoError(t, err)

	assert.Equal(t, "wag1", tr.Name)
	assert.Equal(t, []float64{0, 1, 2}, tr.Time)
	assert.Equal(t, []float64{10, 13, 16}, tr.X)
	assert.Equal(t, []float64{5, 9, 13}, tr.Y)
}

func TestParseTrackErrors(t *testing.T) {
	examples := []struct {
		in  string
		msg string
	}{
		{"h\nh\n1;2\n", "wag:3: want at least 3 fields"},
		{"h\nh\n0;0;0\n1;x;0\n", "wag:4: field 2"},
	}

	for _, ex := range examples {
		_, err := ParseTrack(strings.NewReader(ex.in), "wag")
		require.Error(t, err)
		assert.Contains(t, err.Error(), ex.msg)
	}
}

func TestParseTrackExportedFromSpreadsheet(t *testing.T) {
	in := "\"mass\" A;;\r\n" +
		"t;x;y;note\r\n" +
		"0.0; 10.0; 5.0;start\r\n" +
		"   \r\n" +
		"1.0;13.0;9.0;\r\n"

	tr, err := ParseTrack(strings.NewReader(in), "wag")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, tr.Time)
	assert.Equal(t, []float64{10, 13}, tr.X)
	assert.Equal(t, []float64{5, 9}, tr.Y)
}

func TestParseTrackErrorLineCountsBlankLines(t *testing.T) {
	_, err := ParseTrack(strings.NewReader("h\nh\n0;0;0\n\n1;x;0\n"), "wag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wag:5: field 2")
}

func TestNormalize(t *testing.T) {
	tr, err := ParseTrack(strings.NewReader(wag), "wag")
	require.NoError(t, err)

	tr.Normalize()
	assert.Equal(t, []float64{0, 3, 6}, tr.X)
	assert.Equal(t, []float64{0, 4, 8}, tr.Y)
}

func TestAverageSpeed(t *testing.T) {
	tr, err := ParseTrack(strings.NewReader(wag), "wag")
	require.NoError(t, err)

	// 10cm in 2s.
	v, err := tr.AverageSpeed()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, v, 1e-12)

	_, err = (&Track{Time: []float64{1}, X: []float64{0}, Y: []float64{0}}).AverageSpeed()
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = (&Track{Time: []float64{1, 1}, X: []float64{0, 1}, Y: []float64{0, 1}}).AverageSpeed()
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestFit(t *testing.T) {
	tr, err := ParseTrack(strings.NewReader(wag), "wag")
	require.NoError(t, err)

	f, err := tr.Fit()
	require.NoError(t, err)
	assert.InDelta(t, 10.0, f.X.Intercept, 1e-9)
	assert.InDelta(t, 3.0, f.X.Slope, 1e-9)
	assert.InDelta(t, 5.0, f.Y.Intercept, 1e-9)
	assert.InDelta(t, 4.0, f.Y.Slope, 1e-9)
	assert.InDelta(t, 16.0, f.X.At(2), 1e-9)
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt": wag,
		"b.txt": "h\nh\n0;0;0\n4;0;4\n",
	}

	var tracks []*Track
	for _, name := range []string{"a.txt", "b.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(files[name]), 0o644))

		tr, err := LoadTrack(path)
		require.NoError(t, err)
		tracks = append(tracks, tr)
	}

	s, err := Analyze(tracks)
	require.NoError(t, err)
	require.Len(t, s.Results, 2)

	assert.Equal(t, "a.txt", s.Results[0].Name)
	assert.InDelta(t, 5.0, s.Results[0].Speed, 1e-12)
	assert.InDelta(t, 1.0, s.Results[1].Speed, 1e-12)
	assert.InDelta(t, 3.0, s.MeanSpeed, 1e-12)

	// Fits are of the normalized track.
	assert.InDelta(t, 0.0, s.Results[0].Fit.X.Intercept, 1e-9)
}

func TestAnalyzeNothing(t *testing.T) {
	_, err := Analyze(nil)
	assert.Error(t, err)
}
