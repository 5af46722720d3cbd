package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/di"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infra/memory"
)

type importOptions struct {
	symbol string
	market string
}

type importResult struct {
	File    string            `json:"file"`
	Symbol  string            `json:"symbol"`
	Market  marketdata.Market `json:"market"`
	Bars    int               `json:"bars"`
	Written int               `json:"written"`
}

func newImportCmd(root *rootOptions) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import FILE [FILE...]",
		Short: "Import daily bars from CSV files into the series store",
		Long: `import reads CSV files with columns date,open,high,low,close,volume plus optional
valuation and flow columns. The symbol and market come from the file name
(<SYMBOL>_<MARKET>.csv) unless --symbol and --market are given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "symbol override, only valid with a single file")
	cmd.Flags().StringVar(&opts.market, "market", "", "market override: CN, HK, US")
	return cmd
}

func (o *importOptions) resolve(path string) (string, marketdata.Market, error) {
	if o.symbol != "" && o.market != "" {
		m, err := marketdata.ParseMarket(o.market)
		return strings.ToUpper(o.symbol), m, err
	}
	symbol, market, err := memory.ParseFileName(path)
	if err != nil {
		return "", "", err
	}
	if o.symbol != "" {
		symbol = strings.ToUpper(o.symbol)
	}
	if o.market != "" {
		if market, err = marketdata.ParseMarket(o.market); err != nil {
			return "", "", err
		}
	}
	return symbol, market, nil
}

func runImport(cmd *cobra.Command, root *rootOptions, opts *importOptions, args []string) error {
	if opts.symbol != "" && len(args) > 1 {
		return fmt.Errorf("--symbol can only be used with a single file")
	}
	app, err := root.openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Source() == di.SourceMemory {
		app.Log.Warn().Msg("no database configured, imported series are kept in memory only")
	}

	results := make([]importResult, 0, len(args))
	for _, path := range args {
		symbol, market, err := opts.resolve(path)
		if err != nil {
			return err
		}
		series, err := readSeries(path, symbol, market)
		if err != nil {
			return err
		}
		n, err := app.Import(cmd.Context(), series)
		if err != nil {
			return fmt.Errorf("import %s: %w", filepath.Base(path), err)
		}
		app.Log.Info().Str("symbol", symbol).Int("bars", len(series.Bars)).Msg("series imported")
		results = append(results, importResult{
			File:    filepath.Base(path),
			Symbol:  symbol,
			Market:  market,
			Bars:    len(series.Bars),
			Written: n,
		})
	}
	return writeJSON(cmd.OutOrStdout(), results)
}

func readSeries(path, symbol string, market marketdata.Market) (marketdata.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return marketdata.Series{}, err
	}
	defer f.Close()
	s, err := memory.ParseCSV(f, symbol, market)
	if err != nil {
		return marketdata.Series{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}
