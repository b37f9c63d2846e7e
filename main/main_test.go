package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGait = `
name: wag
commands:
  - {actuator: 1, amount: 0.8, start: 0.0, duration: 0.5}
  - {actuator: 2, amount: 0.6, start: 0.5, duration: 0.5}
`

// workspace writes a config and gait into a temp dir, and returns the path
// of the config.
func workspace(t *testing.T, record bool) string {
	t.Helper()
	dir := t.TempDir()

	gaitPath := filepath.Join(dir, "wag.yaml")
	require.NoError(t, os.WriteFile(gaitPath, []byte(testGait), 0o644))

	cfg := `
gait:
  file: ` + gaitPath + `
  period: 0.5
control:
  tick_rate_hz: 20
  max_output: 180
  run_duration_seconds: 0.25
actuators:
  - {id: 1, name: tail}
  - {id: 2, name: head}
recorder:
  enabled: ` + strconv.FormatBool(record) + `
  path: ` + filepath.Join(dir, "ybot.db") + `
`

	cfgPath := filepath.Join(dir, "ybot.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errs)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "-c", workspace(t, false))
	require.NoError(t, err)
	assert.Contains(t, out, `ok: gait "wag" has 2 commands for 2 actuators`)
}

func TestValidateRejectsExcessiveGain(t *testing.T) {
	cfg := workspace(t, false)
	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), "period: 0.5", "period: 0.5\n  amplitude_gain: 2", 1))
	require.NoError(t, os.WriteFile(cfg, data, 0o644))

	_, err = execute(t, "validate", "-c", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beyond the device range")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "validate", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRunDryThenHistory(t *testing.T) {
	cfg := workspace(t, true)

	out, err := execute(t, "run", "--dry-run", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "stopped after")

	out, err = execute(t, "history", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
	assert.Contains(t, out, "stopped")

	out, err = execute(t, "history", "1", "-c", cfg)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 2)
	assert.Equal(t, "t;tail (#1);head (#2)", lines[1])

	_, err = execute(t, "history", "99", "-c", cfg)
	assert.ErrorContains(t, err, "no run 99")
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "wag1.txt")
	b := filepath.Join(dir, "wag2.txt")
	require.NoError(t, os.WriteFile(a, []byte("mass A\nt;x;y\n0;0;0\n2;6;8\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("mass A\nt;x;y\n0;1;1\n1;1;4\n"), 0o644))

	out, err := execute(t, "analyze", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "wag1.txt: 5.0000 cm/s")
	assert.Contains(t, out, "wag2.txt: 3.0000 cm/s")
	assert.Contains(t, out, "mean of 2: 4.0000 cm/s")
}

func TestAnalyzeNeedsFiles(t *testing.T) {
	_, err := execute(t, "analyze")
	assert.Error(t, err)
}
