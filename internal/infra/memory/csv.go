package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ParseCSV 解析日 K CSV。必要欄位為 date,open,high,low,close,volume；
// valuation、net_flow、large_order_net、institutional_net、margin_balance、
// advancers、decliners、limit_up、limit_down 為可選欄位，空白代表缺值。
func ParseCSV(r io.Reader, symbol string, market marketdata.Market) (marketdata.Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return marketdata.Series{}, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return marketdata.Series{}, fmt.Errorf("csv missing column %q", c)
		}
	}

	out := marketdata.Series{Symbol: symbol, Market: market}
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return marketdata.Series{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		row := csvRow{rec: rec, cols: cols}
		b, err := row.bar()
		if err != nil {
			return marketdata.Series{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		out.Bars = append(out.Bars, b)
	}
	return out, nil
}

// LoadDir 載入目錄下所有 <SYMBOL>_<MARKET>.csv 檔案，回傳載入的代號數。
func (s *Store) LoadDir(ctx context.Context, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, f := range files {
		symbol, market, err := ParseFileName(f)
		if err != nil {
			return loaded, err
		}
		series, err := readCSVFile(f, symbol, market)
		if err != nil {
			return loaded, err
		}
		if _, err := s.UpsertSeries(ctx, series); err != nil {
			return loaded, fmt.Errorf("%s: %w", filepath.Base(f), err)
		}
		loaded++
	}
	return loaded, nil
}

// ParseFileName 由 <SYMBOL>_<MARKET>.csv 取出代號與市場。
func ParseFileName(path string) (string, marketdata.Market, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", fmt.Errorf("file %s: expected <SYMBOL>_<MARKET>.csv", filepath.Base(path))
	}
	market, err := marketdata.ParseMarket(base[idx+1:])
	if err != nil {
		return "", "", fmt.Errorf("file %s: %w", filepath.Base(path), err)
	}
	return strings.ToUpper(base[:idx]), market, nil
}

func readCSVFile(path, symbol string, market marketdata.Market) (marketdata.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return marketdata.Series{}, err
	}
	defer f.Close()
	s, err := ParseCSV(f, symbol, market)
	if err != nil {
		return marketdata.Series{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

type csvRow struct {
	rec  []string
	cols map[string]int
}

func (r csvRow) cell(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r csvRow) float(name string) (float64, error) {
	v, err := strconv.ParseFloat(r.cell(name), 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}

func (r csvRow) optFloat(name string) (*float64, error) {
	raw := r.cell(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &v, nil
}

func (r csvRow) optInt(name string) (*int, error) {
	raw := r.cell(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", name, err)
	}
	return &v, nil
}

func (r csvRow) bar() (marketdata.Bar, error) {
	var b marketdata.Bar
	date, err := time.Parse("2006-01-02", r.cell("date"))
	if err != nil {
		return b, fmt.Errorf("column date: %w", err)
	}
	b.Date = date

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume},
	} {
		if *f.dst, err = r.float(f.name); err != nil {
			return b, err
		}
	}

	for _, f := range []struct {
		name string
		dst  **float64
	}{
		{"valuation", &b.Valuation},
		{"net_flow", &b.NetFlow},
		{"large_order_net", &b.LargeOrderNet},
		{"institutional_net", &b.InstitutionalNet},
		{"margin_balance", &b.MarginBalance},
	} {
		if *f.dst, err = r.optFloat(f.name); err != nil {
			return b, err
		}
	}

	adv, err := r.optInt("advancers")
	if err != nil {
		return b, err
	}
	dec, err := r.optInt("decliners")
	if err != nil {
		return b, err
	}
	if adv != nil && dec != nil {
		b.Breadth = &marketdata.BreadthCount{Advancers: *adv, Decliners: *dec}
	}
	up, err := r.optInt("limit_up")
	if err != nil {
		return b, err
	}
	down, err := r.optInt("limit_down")
	if err != nil {
		return b, err
	}
	if up != nil && down != nil {
		b.Extremes = &marketdata.ExtremeCount{LimitUp: *up, LimitDown: *down}
	}
	return b, nil
}
