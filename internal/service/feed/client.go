package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"AlphaPipe/internal/domain/models"
	drepo "AlphaPipe/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream over an exchange WebSocket that
// pushes closed OHLCV bars per subscribed symbol.
type Client struct {
	apiKey         string
	websocketURL   string
	exchange       string
	symbols        []string
	timeframe      string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	staleAfter     time.Duration

	conn      *websocket.Conn
	connected bool
	lastMsg   atomic.Int64 // unix nanos of last received frame
}

// New creates a new bar-feed MarketStream.
func New(apiKey, websocketURL, exchange string, symbols []string, timeframe string, reconnectDelay, pingInterval, staleAfter time.Duration) *Client {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		exchange:       exchange,
		symbols:        symbols,
		timeframe:      timeframe,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		staleAfter:     staleAfter,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.lastMsg.Store(time.Now().UnixNano())
	log.Printf("feed: connected to %s", c.exchange)
	return nil
}

// Subscribe subscribes to the bar channel for configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "channel": "bars", "symbol": s, "tf": c.timeframe}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		log.Printf("feed: subscribed %s %s", s, c.timeframe)
	}
	return nil
}

type wsBar struct {
	S  string  `json:"s"`
	TF string  `json:"tf"`
	T  int64   `json:"t"` // ms
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	C  float64 `json:"c"`
	V  float64 `json:"v"`
}

type wsMessage struct {
	Type string  `json:"type"`
	Data []wsBar `json:"data"`
}

// Read streams closed bars and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	bars := make(chan *models.Bar, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(bars)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				c.lastMsg.Store(time.Now().UnixNano())
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-bar frames
					continue
				}
				if m.Type != "bar" {
					continue
				}
				for _, d := range m.Data {
					tf := d.TF
					if tf == "" {
						tf = c.timeframe
					}
					bar := &models.Bar{
						Timestamp: d.T / 1000,
						Open:      d.O,
						High:      d.H,
						Low:       d.L,
						Close:     d.C,
						Volume:    d.V,
						Exchange:  c.exchange,
						Symbol:    d.S,
						Timeframe: tf,
					}
					select {
					case bars <- bar:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return bars, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }

// Stale reports whether no frame has arrived within the configured
// staleness window. Feeds the stale-feed risk rule.
func (c *Client) Stale() bool {
	if c.staleAfter <= 0 {
		return false
	}
	last := c.lastMsg.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) > c.staleAfter
}

var _ drepo.MarketStream = (*Client)(nil)
