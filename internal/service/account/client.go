// Package account supplies risk context snapshots from the account
// service. Snapshots are cached briefly and degrade to a conservative
// default when the service is unreachable, so the pipeline never blocks
// on account I/O.
package account

import (
	"context"
	"fmt"
	"time"

	"AlphaPipe/internal/domain/models"
	domsvc "AlphaPipe/internal/domain/service"
	svcache "AlphaPipe/internal/service/cache"
	pkghttp "AlphaPipe/pkg/http"
	applogger "AlphaPipe/pkg/logger"
)

// StaleChecker reports whether the market feed has gone quiet.
type StaleChecker interface {
	Stale() bool
}

// Client fetches account state over HTTP.
type Client struct {
	http     *pkghttp.Client
	baseURL  string
	cache    *svcache.TTLCache
	cacheTTL time.Duration
	stale    StaleChecker
	l        *applogger.Logger
}

// New creates an account risk source. stale may be nil.
func New(baseURL string, timeout, cacheTTL time.Duration, stale StaleChecker, l *applogger.Logger) *Client {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Second
	}
	return &Client{
		http:     pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		baseURL:  baseURL,
		cache:    svcache.NewTTLCache(),
		cacheTTL: cacheTTL,
		stale:    stale,
		l:        l,
	}
}

type accountState struct {
	PnL      float64 `json:"pnl"`
	Exposure float64 `json:"exposure"`
	Leverage float64 `json:"leverage"`
}

// Snapshot returns the freshest known risk context. On fetch failure
// the snapshot reports the feed stale, which blocks new actions until
// the account service recovers.
func (c *Client) Snapshot(ctx context.Context, exchange, symbol string) models.RiskContext {
	rc := models.RiskContext{Exchange: exchange, Symbol: symbol}
	if c.stale != nil {
		rc.FeedStale = c.stale.Stale()
	}
	if c.baseURL == "" {
		return rc
	}

	key := exchange + ":" + symbol
	if v, ok := c.cache.Get(key); ok {
		if st, ok := v.(accountState); ok {
			rc.PnL, rc.Exposure, rc.Leverage = st.PnL, st.Exposure, st.Leverage
			return rc
		}
	}

	var st accountState
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    fmt.Sprintf("%s/api/account/state", c.baseURL),
		QueryParams: map[string][]string{
			"exchange": {exchange},
			"symbol":   {symbol},
		},
	}, &st)
	if err != nil {
		if c.l != nil {
			c.l.Warn("account snapshot failed, blocking new actions",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		rc.FeedStale = true
		return rc
	}

	c.cache.Set(key, st, c.cacheTTL)
	rc.PnL, rc.Exposure, rc.Leverage = st.PnL, st.Exposure, st.Leverage
	return rc
}

var _ domsvc.RiskSource = (*Client)(nil)
