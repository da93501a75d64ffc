package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	pkgch "AlphaPipe/pkg/clickhouse"
	applogger "AlphaPipe/pkg/logger"
)

// ClickHouseBarStore persists and reads OHLCV bars. It implements both
// the writer side (ingestion) and the reader side (replay, read API).
type ClickHouseBarStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewClickHouseBarStore(ch *pkgch.Client) *ClickHouseBarStore {
	return &ClickHouseBarStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseBarStore) Store(ctx context.Context, b *models.Bar) error {
	return s.StoreBatch(ctx, []*models.Bar{b})
}

func (s *ClickHouseBarStore) StoreBatch(ctx context.Context, bars []*models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// chunked multi-row VALUES to keep round-trips down
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}

		byTable := make(map[string][]*models.Bar)
		for _, b := range bars[start:end] {
			if b == nil || b.Symbol == "" || b.Timestamp == 0 {
				continue
			}
			table, err := tableForTF(domrepo.NormalizeTimeframe(b.Timeframe))
			if err != nil {
				return err
			}
			byTable[table] = append(byTable[table], b)
		}

		for table, group := range byTable {
			values := make([]string, 0, len(group))
			args := make([]interface{}, 0, len(group)*8)
			for _, b := range group {
				values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
				args = append(args,
					time.Unix(b.Timestamp, 0),
					b.Exchange,
					b.Symbol,
					b.Open,
					b.High,
					b.Low,
					b.Close,
					b.Volume,
				)
			}
			q := fmt.Sprintf("INSERT INTO %s (bucket, exchange, symbol, open, high, low, close, vol) VALUES %s", table, strings.Join(values, ","))
			if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
				if s.l != nil {
					s.l.Error("clickhouse store_bars error",
						applogger.String("table", table),
						applogger.Int("rows", len(group)),
						applogger.Error(err),
					)
				}
				return fmt.Errorf("store bars: %w", err)
			}
		}
	}
	return nil
}

func (s *ClickHouseBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, exchange, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_bars query error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, 1024)
	for rows.Next() {
		b, err := scanBar(rows, tf)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse get_bars ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, exchange, symbol, open, high, low, close, vol
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_bars query error",
				applogger.String("table", table),
				applogger.String("symbol", symbol),
				applogger.String("tf", string(tf)),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Bar, 0, n)
	for rows.Next() {
		b, err := scanBar(rows, tf)
		if err != nil {
			return nil, err
		}
		tmp = append(tmp, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_bars ok",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *ClickHouseBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseBarStore) Close() error {
	return nil // connection owned by pkg/clickhouse
}

func scanBar(rows *sql.Rows, tf domrepo.Timeframe) (models.Bar, error) {
	var b models.Bar
	var bucket time.Time
	if err := rows.Scan(&bucket, &b.Exchange, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
		return models.Bar{}, fmt.Errorf("scan bar: %w", err)
	}
	b.Timestamp = bucket.Unix()
	b.Timeframe = string(tf)
	return b, nil
}

func tableForTF(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1s:
		return "alphapipe.rt_bars_1s", nil
	case domrepo.TF1m:
		return "alphapipe.rt_bars_1m", nil
	case domrepo.TF5m:
		return "alphapipe.rt_bars_5m", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

var (
	_ domrepo.BarStore  = (*ClickHouseBarStore)(nil)
	_ domrepo.BarWriter = (*ClickHouseBarStore)(nil)
)
