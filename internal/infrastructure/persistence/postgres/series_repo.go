package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/application/analysis"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/domain/marketdata"
)

// SeriesRepo 從 instruments / daily_bars 讀寫歷史序列。
type SeriesRepo struct {
	db *sql.DB
}

// NewSeriesRepo 建立序列資料存取實例。
func NewSeriesRepo(db *sql.DB) *SeriesRepo {
	return &SeriesRepo{db: db}
}

const selectBarColumns = `b.trade_date, b.open_price, b.high_price, b.low_price, b.close_price, b.volume,
       b.valuation, b.net_flow, b.large_order_net, b.institutional_net, b.margin_balance,
       b.advancers, b.decliners, b.limit_up, b.limit_down`

// GetSeries 取單一代號截至 end（含）的最近 limit 筆資料，依日期遞增。
// end 為零值表示不限日期，limit <= 0 表示不限筆數。
func (r *SeriesRepo) GetSeries(ctx context.Context, symbol string, end time.Time, limit int) (marketdata.Series, error) {
	var market string
	err := r.db.QueryRowContext(ctx, `SELECT market FROM instruments WHERE symbol = $1`, symbol).Scan(&market)
	if err == sql.ErrNoRows {
		return marketdata.Series{}, fmt.Errorf("symbol %s: %w", symbol, analysis.ErrSeriesNotFound)
	}
	if err != nil {
		return marketdata.Series{}, fmt.Errorf("query instrument: %w", err)
	}

	q := `
SELECT * FROM (
  SELECT ` + selectBarColumns + `
  FROM daily_bars b
  JOIN instruments i ON b.instrument_id = i.id
  WHERE i.symbol = $1 AND ($2::date IS NULL OR b.trade_date <= $2::date)
  ORDER BY b.trade_date DESC
  LIMIT $3
) recent
ORDER BY trade_date;
`
	var endArg sql.NullTime
	if !end.IsZero() {
		endArg = sql.NullTime{Time: end, Valid: true}
	}
	var limitArg sql.NullInt64
	if limit > 0 {
		limitArg = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, q, symbol, endArg, limitArg)
	if err != nil {
		return marketdata.Series{}, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out := marketdata.Series{Symbol: symbol, Market: marketdata.Market(market)}
	for rows.Next() {
		b, err := scanBar(rows)
		if err != nil {
			return marketdata.Series{}, err
		}
		out.Bars = append(out.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return marketdata.Series{}, err
	}
	return out, nil
}

func scanBar(rows *sql.Rows) (marketdata.Bar, error) {
	var (
		b                                          marketdata.Bar
		valuation, netFlow, largeOrder, inst, marg sql.NullFloat64
		adv, dec, up, down                         sql.NullInt64
	)
	if err := rows.Scan(
		&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		&valuation, &netFlow, &largeOrder, &inst, &marg,
		&adv, &dec, &up, &down,
	); err != nil {
		return marketdata.Bar{}, fmt.Errorf("scan bar: %w", err)
	}
	b.Valuation = nullFloat(valuation)
	b.NetFlow = nullFloat(netFlow)
	b.LargeOrderNet = nullFloat(largeOrder)
	b.InstitutionalNet = nullFloat(inst)
	b.MarginBalance = nullFloat(marg)
	if adv.Valid && dec.Valid {
		b.Breadth = &marketdata.BreadthCount{Advancers: int(adv.Int64), Decliners: int(dec.Int64)}
	}
	if up.Valid && down.Valid {
		b.Extremes = &marketdata.ExtremeCount{LimitUp: int(up.Int64), LimitDown: int(down.Int64)}
	}
	return b, nil
}

// ListSymbols 列出所有已匯入的代號。
func (r *SeriesRepo) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT symbol FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSeries 以 (instrument_id, trade_date) 為唯一鍵寫入整段序列，回傳寫入筆數。
func (r *SeriesRepo) UpsertSeries(ctx context.Context, s marketdata.Series) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const upsertInstrument = `
INSERT INTO instruments (symbol, market)
VALUES ($1, $2)
ON CONFLICT (symbol)
DO UPDATE SET market = EXCLUDED.market, updated_at = NOW()
RETURNING id;
`
	var id int64
	if err := tx.QueryRowContext(ctx, upsertInstrument, s.Symbol, string(s.Market)).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert instrument: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO daily_bars (instrument_id, trade_date, open_price, high_price, low_price, close_price, volume,
                        valuation, net_flow, large_order_net, institutional_net, margin_balance,
                        advancers, decliners, limit_up, limit_down)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (instrument_id, trade_date)
DO UPDATE SET open_price = EXCLUDED.open_price,
              high_price = EXCLUDED.high_price,
              low_price = EXCLUDED.low_price,
              close_price = EXCLUDED.close_price,
              volume = EXCLUDED.volume,
              valuation = EXCLUDED.valuation,
              net_flow = EXCLUDED.net_flow,
              large_order_net = EXCLUDED.large_order_net,
              institutional_net = EXCLUDED.institutional_net,
              margin_balance = EXCLUDED.margin_balance,
              advancers = EXCLUDED.advancers,
              decliners = EXCLUDED.decliners,
              limit_up = EXCLUDED.limit_up,
              limit_down = EXCLUDED.limit_down;
`)
	if err != nil {
		return 0, fmt.Errorf("prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range s.Bars {
		var adv, dec, up, down sql.NullInt64
		if b.Breadth != nil {
			adv = sql.NullInt64{Int64: int64(b.Breadth.Advancers), Valid: true}
			dec = sql.NullInt64{Int64: int64(b.Breadth.Decliners), Valid: true}
		}
		if b.Extremes != nil {
			up = sql.NullInt64{Int64: int64(b.Extremes.LimitUp), Valid: true}
			down = sql.NullInt64{Int64: int64(b.Extremes.LimitDown), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			id, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume,
			toNullFloat(b.Valuation), toNullFloat(b.NetFlow), toNullFloat(b.LargeOrderNet),
			toNullFloat(b.InstitutionalNet), toNullFloat(b.MarginBalance),
			adv, dec, up, down,
		); err != nil {
			return 0, fmt.Errorf("upsert bar %s: %w", b.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(s.Bars), nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
