package market

import (
	"context"
	"sync"
	"time"

	"marketgateway/config"
	"marketgateway/pkg/storage/postgres"

	"go.uber.org/zap"
)

type persistJob struct {
	symbol string
	bars   []Bar
}

type companyLookup func(ctx context.Context, symbol string) (*Company, error)

// persister writes fetched bars to the durable store in the background.
// Enqueue never blocks the read path; a full queue drops the job.
type persister struct {
	store   BarStore
	company companyLookup
	queue   chan persistJob
	workers int
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newPersister(store BarStore, company companyLookup, cfg config.PersistConfig, log *zap.Logger) *persister {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &persister{
		store:   store,
		company: company,
		queue:   make(chan persistJob, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		logger:  log.Named("persister"),
	}
}

func (p *persister) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.queue {
				p.run(job)
			}
		}()
	}
}

// enqueue reports whether the job was accepted.
func (p *persister) enqueue(job persistJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Warn("persistence queue full, dropping job",
			zap.String("symbol", job.symbol), zap.Int("bars", len(job.bars)))
		return false
	}
}

func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) run(job persistJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	var stock *postgres.StockRecord
	if c, err := p.company(ctx, job.symbol); err != nil {
		// bars are still stored; the reference row keeps its previous values
		p.logger.Warn("company lookup failed", zap.String("symbol", job.symbol), zap.Error(err))
	} else {
		stock = toStockRecord(c)
	}

	records := make([]postgres.BarRecord, len(job.bars))
	for i, b := range job.bars {
		records[i] = postgres.BarRecord{
			Time:   b.Time.UTC(),
			Symbol: job.symbol,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	if err := p.store.StoreStockData(ctx, stock, records); err != nil {
		p.logger.Error("failed to store stock data", zap.String("symbol", job.symbol), zap.Error(err))
		return
	}
	p.logger.Debug("stored stock data", zap.String("symbol", job.symbol), zap.Int("bars", len(records)))
}

func toStockRecord(c *Company) *postgres.StockRecord {
	return &postgres.StockRecord{
		Symbol:      c.Symbol,
		Name:        c.Name,
		Sector:      c.Sector,
		Industry:    c.Industry,
		MarketCap:   c.MarketCap,
		Employees:   c.Employees,
		Website:     c.Website,
		Description: c.Description,
		Country:     c.Country,
		Currency:    c.Currency,
		Exchange:    c.Exchange,
	}
}
