package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	domain "github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/analysis"
)

type analogOptions struct {
	asOf        string
	preset      string
	horizons    []int
	minSamples  int
	applyRegime bool
}

type batchOutput struct {
	Symbol string                 `json:"symbol"`
	Status string                 `json:"status"`
	Error  string                 `json:"error,omitempty"`
	Report *analysis.AnalogReport `json:"report,omitempty"`
}

func newAnalogCmd(root *rootOptions) *cobra.Command {
	opts := &analogOptions{}
	cmd := &cobra.Command{
		Use:   "analog SYMBOL [SYMBOL...]",
		Short: "Find historical analog days and summarize forward returns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalog(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "analysis date (YYYY-MM-DD), defaults to the latest bar")
	cmd.Flags().StringVar(&opts.preset, "preset", analysis.PresetTechnical, "filter preset: price, price_volume, price_volume_valuation, price_volume_valuation_flow, technical")
	cmd.Flags().IntSliceVar(&opts.horizons, "horizons", nil, "forward horizons in trading days")
	cmd.Flags().IntVar(&opts.minSamples, "min-samples", 0, "minimum matches before relaxing filters")
	cmd.Flags().BoolVar(&opts.applyRegime, "apply-regime", false, "scale position advice by the current market regime")
	return cmd
}

func runAnalog(cmd *cobra.Command, root *rootOptions, opts *analogOptions, args []string) error {
	asOf, err := parseAsOf(opts.asOf)
	if err != nil {
		return err
	}
	app, err := root.openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	in := analysis.AnalogInput{
		AsOf:        asOf,
		Preset:      opts.preset,
		Horizons:    opts.horizons,
		MinSamples:  opts.minSamples,
		ApplyRegime: opts.applyRegime,
	}
	ctx := cmd.Context()

	if len(args) == 1 {
		in.Symbol = strings.ToUpper(args[0])
		report, err := app.Analog.Execute(ctx, in)
		if err != nil && !domain.IsNoMatches(err) {
			return err
		}
		if err != nil {
			app.Log.Warn().Err(err).Str("symbol", in.Symbol).Msg("no analog matches")
		}
		return writeJSON(cmd.OutOrStdout(), report)
	}

	symbols := make([]string, len(args))
	for i, a := range args {
		symbols[i] = strings.ToUpper(a)
	}
	items, err := app.Batch.Execute(ctx, symbols, in)
	if err != nil {
		return err
	}
	out := make([]batchOutput, len(items))
	for i, item := range items {
		out[i] = batchOutput{Symbol: item.Symbol, Status: item.Report.Status}
		if item.Err != nil {
			out[i].Error = item.Err.Error()
			if !domain.IsNoMatches(item.Err) {
				out[i].Status = "error"
				continue
			}
		}
		out[i].Report = &items[i].Report
	}
	return writeJSON(cmd.OutOrStdout(), out)
}
