package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, path string, n int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	start := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 * (1 + 0.08*math.Sin(2*math.Pi*float64(i)/50))
		v := 1000 + 200*math.Cos(2*math.Pi*float64(i)/50)
		fmt.Fprintf(&b, "%s,%.6f,%.6f,%.6f,%.6f,%.4f\n", start.AddDate(0, 0, i).Format(dateLayout), c, c, c, c, v)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

// execute 以獨立的 root command 執行 CLI，回傳 stdout。
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DB_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	base := []string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "--log-level", "error"}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func dataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "WAVE_US.csv"), 600)
	writeCSV(t, filepath.Join(dir, "TIDE_HK.csv"), 600)
	return dir
}

func TestAnalogCommand(t *testing.T) {
	dir := dataDir(t)

	out, err := execute(t, "analog", "wave", "--csv-dir", dir, "--horizons", "5,20")
	require.NoError(t, err)

	var report struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		Statistics []struct {
			Horizon int `json:"horizon"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "WAVE", report.Symbol)
	assert.Equal(t, "ok", report.Status)
	require.Len(t, report.Statistics, 2)
	assert.Equal(t, 20, report.Statistics[1].Horizon)
}

func TestAnalogCommand_Batch(t *testing.T) {
	dir := dataDir(t)

	out, err := execute(t, "analog", "WAVE", "TIDE", "MISSING", "--csv-dir", dir)
	require.NoError(t, err)

	var items []batchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 3)
	assert.Equal(t, "ok", items[0].Status)
	assert.Equal(t, "TIDE", items[1].Symbol)
	assert.NotNil(t, items[1].Report)
	assert.Equal(t, "error", items[2].Status)
	assert.Nil(t, items[2].Report)
}

func TestAnalogCommand_Errors(t *testing.T) {
	dir := dataDir(t)

	_, err := execute(t, "analog", "WAVE", "--csv-dir", dir, "--as-of", "2020/01/01")
	assert.ErrorContains(t, err, "--as-of")

	_, err = execute(t, "analog", "WAVE", "--csv-dir", dir, "--preset", "tarot")
	assert.Error(t, err)

	_, err = execute(t, "analog", "--csv-dir", dir)
	assert.Error(t, err)
}

func TestRegimeCommand(t *testing.T) {
	dir := dataDir(t)

	out, err := execute(t, "regime", "TIDE", "--csv-dir", dir)
	require.NoError(t, err)
	var report struct {
		Market string `json:"market"`
		Result struct {
			Label string `json:"label"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "HK", report.Market)
	assert.NotEmpty(t, report.Result.Label)

	out, err = execute(t, "regime", "--market", "cn", "--input", "technical=75", "--input", "trend=1")
	require.NoError(t, err)
	assert.Contains(t, out, `"market": "CN"`)
}

func TestRegimeOptions_ToInput(t *testing.T) {
	tests := []struct {
		name    string
		opts    regimeOptions
		args    []string
		wantErr string
	}{
		{"nothing", regimeOptions{}, nil, "SYMBOL or --input"},
		{"inputs without market", regimeOptions{inputs: map[string]string{"trend": "1"}}, nil, "--market"},
		{"bad number", regimeOptions{market: "US", inputs: map[string]string{"trend": "up"}}, nil, "not a number"},
		{"unknown dimension", regimeOptions{market: "US", inputs: map[string]string{"moon": "1"}}, nil, "moon"},
		{"bad market", regimeOptions{market: "JP", inputs: map[string]string{"trend": "1"}}, nil, "unsupported market"},
		{"bad date", regimeOptions{asOf: "yesterday"}, []string{"HSI"}, "--as-of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.toInput(tt.args)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	opts := regimeOptions{market: "us", inputs: map[string]string{"trend": "0.5"}}
	in, err := opts.toInput([]string{"spx"})
	require.NoError(t, err)
	assert.Equal(t, "SPX", in.Symbol)
	require.NotNil(t, in.Inputs)
	assert.Equal(t, 0.5, *in.Inputs.Trend)
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spx_US.csv")
	writeCSV(t, path, 30)

	out, err := execute(t, "import", path)
	require.NoError(t, err)

	var results []importResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "SPX", results[0].Symbol)
	assert.Equal(t, "US", string(results[0].Market))
	assert.Equal(t, 30, results[0].Bars)
	assert.Equal(t, 30, results[0].Written)

	_, err = execute(t, "import", path, path, "--symbol", "X")
	assert.ErrorContains(t, err, "single file")

	bad := filepath.Join(dir, "nounderscore.csv")
	writeCSV(t, bad, 5)
	_, err = execute(t, "import", bad)
	assert.Error(t, err)

	out, err = execute(t, "import", bad, "--symbol", "ndx", "--market", "us")
	require.NoError(t, err)
	assert.Contains(t, out, `"symbol": "NDX"`)
}
