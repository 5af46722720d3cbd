package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	regimeapp "github.com/FuNgaiKa/stock-analysis-sub000/internal/application/regime"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

type regimeOptions struct {
	asOf   string
	market string
	inputs map[string]string
}

func newRegimeCmd(root *rootOptions) *cobra.Command {
	opts := &regimeOptions{}
	cmd := &cobra.Command{
		Use:   "regime [SYMBOL]",
		Short: "Classify the market regime from a stored series or explicit inputs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegime(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "classification date (YYYY-MM-DD), defaults to the latest bar")
	cmd.Flags().StringVar(&opts.market, "market", "", "market weight table for explicit inputs: CN, HK, US")
	cmd.Flags().StringToStringVar(&opts.inputs, "input", nil, "explicit dimension value, e.g. --input trend=0.5")
	return cmd
}

func (o *regimeOptions) toInput(args []string) (regimeapp.Input, error) {
	var in regimeapp.Input
	if len(args) == 1 {
		in.Symbol = strings.ToUpper(args[0])
	}
	asOf, err := parseAsOf(o.asOf)
	if err != nil {
		return in, err
	}
	in.AsOf = asOf

	if len(o.inputs) == 0 {
		if in.Symbol == "" {
			return in, fmt.Errorf("either SYMBOL or --input is required")
		}
		return in, nil
	}
	if o.market == "" {
		return in, fmt.Errorf("--market is required with --input")
	}
	market, err := marketdata.ParseMarket(o.market)
	if err != nil {
		return in, err
	}
	values := make(map[string]float64, len(o.inputs))
	for k, raw := range o.inputs {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return in, fmt.Errorf("input %s: %q is not a number", k, raw)
		}
		values[k] = v
	}
	inputs, err := regimeapp.InputsFromMap(values)
	if err != nil {
		return in, err
	}
	in.Market = market
	in.Inputs = &inputs
	return in, nil
}

func runRegime(cmd *cobra.Command, root *rootOptions, opts *regimeOptions, args []string) error {
	in, err := opts.toInput(args)
	if err != nil {
		return err
	}
	app, err := root.openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Regime.Execute(cmd.Context(), in)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), report)
}
