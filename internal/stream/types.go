package stream

import "marketgateway/internal/market"

// Command is a client request, e.g. {"op":"subscribe","args":["AAPL","MSFT"]}.
type Command struct {
	Op   string   `json:"op"` // "subscribe", "unsubscribe" or "ping"
	Args []string `json:"args"`
}

// Reply acknowledges a Command.
type Reply struct {
	Op      string   `json:"op"`
	Success bool     `json:"success"`
	Args    []string `json:"args,omitempty"`
	Message string   `json:"message,omitempty"`
}

// QuoteMessage carries one pushed quote, topic "quote.{SYMBOL}".
type QuoteMessage struct {
	Topic string        `json:"topic"`
	Data  *market.Quote `json:"data,omitempty"`
	Error string        `json:"error,omitempty"`
	TS    int64         `json:"ts"` // unix millis of the push
}
