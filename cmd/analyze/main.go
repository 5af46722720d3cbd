package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/di"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/logging"
)

const dateLayout = "2006-01-02"

type rootOptions struct {
	configPath string
	csvDir     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Historical analog matching and market regime scoring",
		Long: `analyze runs the analysis engine against stored daily series and writes JSON.

Examples:
  analyze analog 000300 --preset technical --horizons 5,20
  analyze analog 000300 HSI SPX --apply-regime
  analyze regime HSI
  analyze regime --market US --input trend=0.5 --input technical=62
  analyze import data/000300_CN.csv`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.csvDir, "csv-dir", "", "load series from <SYMBOL>_<MARKET>.csv files in this directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level")

	cmd.AddCommand(newAnalogCmd(opts), newRegimeCmd(opts), newImportCmd(opts))
	return cmd
}

// openApp 載入設定並組裝用例；呼叫端負責 Close。
func (o *rootOptions) openApp(cmd *cobra.Command) (*di.App, error) {
	cfg, err := config.LoadFromFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.csvDir != "" {
		cfg.Data.CSVDir = o.csvDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	return di.New(ctx, cfg, log)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
