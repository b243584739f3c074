package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"marketgateway/config"
	"marketgateway/internal/market"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// QuoteSource supplies batch quotes; market.Service satisfies it.
type QuoteSource interface {
	GetQuotes(ctx context.Context, symbols []string) ([]market.BatchEntry, error)
}

// Handler upgrades requests to websocket connections that receive the latest
// quote for each subscribed symbol every interval.
type Handler struct {
	source     QuoteSource
	upgrader   websocket.Upgrader
	interval   time.Duration
	maxSymbols int
	logger     *zap.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHandler builds the stream endpoint. Browser handshakes must come from one of
// origins ("*" allows any); with no origins only same-host pages may connect.
func NewHandler(source QuoteSource, cfg config.StreamConfig, origins []string, log *zap.Logger) *Handler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.MaxSymbols <= 0 || cfg.MaxSymbols > market.MaxBatchSymbols {
		cfg.MaxSymbols = market.MaxBatchSymbols
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		source:     source,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096, CheckOrigin: checkOrigin(origins)},
		interval:   cfg.Interval,
		maxSymbols: cfg.MaxSymbols,
		logger:     log.Named("stream"),
		conns:      make(map[*websocket.Conn]struct{}),
	}
}

// checkOrigin accepts handshakes without an Origin header (non-browser clients),
// listed origins, and same-host pages.
func checkOrigin(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// ServeHTTP subscribes the connection to the comma-separated ?symbols= list.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.track(conn, true)

	c := &client{
		h:    h,
		conn: conn,
		send: make(chan any, sendBuffer),
		subs: make(map[string]struct{}),
		done: make(chan struct{}),
	}
	c.subscribe(splitSymbols(r.URL.Query().Get("symbols")))

	h.logger.Info("stream client connected", zap.String("remote", r.RemoteAddr), zap.Strings("symbols", c.symbols()))
	go c.writePump()
	c.readPump()
}

// Close disconnects every client.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

// Clients returns the number of open connections.
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Handler) track(conn *websocket.Conn, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if add {
		h.conns[conn] = struct{}{}
	} else {
		delete(h.conns, conn)
	}
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type client struct {
	h    *Handler
	conn *websocket.Conn
	send chan any
	done chan struct{}

	mu   sync.Mutex
	subs map[string]struct{}
}

// subscribe adds symbols up to the per-connection limit and returns the ones accepted.
func (c *client) subscribe(symbols []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []string
	for _, s := range symbols {
		if _, err := market.NormalizeSymbol(s); err != nil {
			continue
		}
		if _, ok := c.subs[s]; !ok && len(c.subs) >= c.h.maxSymbols {
			break
		}
		c.subs[s] = struct{}{}
		added = append(added, s)
	}
	return added
}

func (c *client) unsubscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		delete(c.subs, s)
	}
}

func (c *client) symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// readPump handles client commands and watches for disconnects.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.h.track(c.conn, false)
		_ = c.conn.Close()
		c.h.logger.Info("stream client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			c.reply(Reply{Op: "error", Message: "invalid command"})
			continue
		}

		args := splitSymbols(strings.Join(cmd.Args, ","))
		switch cmd.Op {
		case "subscribe":
			added := c.subscribe(args)
			c.reply(Reply{Op: cmd.Op, Success: len(added) > 0, Args: added})
			go c.push()
		case "unsubscribe":
			c.unsubscribe(args)
			c.reply(Reply{Op: cmd.Op, Success: true, Args: args})
		case "ping":
			c.reply(Reply{Op: "pong", Success: true})
		default:
			c.reply(Reply{Op: cmd.Op, Message: "unknown op"})
		}
	}
}

func (c *client) reply(r Reply) {
	select {
	case c.send <- r:
	case <-c.done:
	default:
		c.h.logger.Warn("stream client too slow, dropping reply")
	}
}

// push fetches quotes for the current subscriptions and queues them.
func (c *client) push() {
	symbols := c.symbols()
	if len(symbols) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.h.interval+writeWait)
	defer cancel()

	entries, err := c.h.source.GetQuotes(ctx, symbols)
	if err != nil {
		c.h.logger.Warn("stream quote fetch failed", zap.Error(err))
		return
	}

	ts := time.Now().UnixMilli()
	for _, e := range entries {
		msg := QuoteMessage{Topic: "quote." + e.Symbol, Data: e.Quote, Error: e.Error, TS: ts}
		select {
		case c.send <- msg:
		case <-c.done:
			return
		default:
			c.h.logger.Warn("stream client too slow, dropping quote", zap.String("symbol", e.Symbol))
		}
	}
}

// writePump is the only goroutine writing to the connection.
func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	tick := time.NewTicker(c.h.interval)
	defer func() {
		ping.Stop()
		tick.Stop()
		_ = c.conn.Close()
	}()

	go c.push()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.h.logger.Warn("websocket write error", zap.Error(err))
				return
			}
		case <-tick.C:
			go c.push()
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
