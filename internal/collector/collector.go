// Package collector polls providers for the watchlist and feeds the bus.
//
// One cycle iterates a snapshot of the watchlist. Per address, providers are
// tried in priority order until one yields a payload that survives
// normalization; every failure along the way is recoverable and logged. The
// accepted record is published before storage so subscribers never wait on a
// database.
package collector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"tokenpulse/internal/bus"
	"tokenpulse/internal/cache"
	"tokenpulse/internal/domain"
	"tokenpulse/internal/logging"
	"tokenpulse/internal/normalize"
	"tokenpulse/internal/observability"
	"tokenpulse/internal/provider"
	"tokenpulse/internal/ratelimit"
	"tokenpulse/internal/storage"
)

const (
	// DefaultInterval is the inter-cycle sleep.
	DefaultInterval = 30 * time.Second
	// DefaultCallTimeout bounds each provider call.
	DefaultCallTimeout = 10 * time.Second

	// rateKey is the rate-window key shared by all collector fetches; the
	// scope is the provider name.
	rateKey = "token_info"
)

// Options configures a Collector. Bus, Providers, Store and Window are
// required; the rest are optional collaborators.
type Options struct {
	Bus       *bus.Bus
	Providers []provider.Provider // priority order, first wins
	Store     storage.PriceStore
	Window    *ratelimit.Window

	// Tokens persists the watchlist when set.
	Tokens storage.TokenStore
	// Cache receives the latest price after a successful store when set.
	Cache *cache.PriceCache

	Interval    time.Duration
	CallTimeout time.Duration
	Logger      logrus.FieldLogger
}

// Collector periodically refreshes price data for a dynamic watchlist.
type Collector struct {
	bus       *bus.Bus
	providers []provider.Provider
	store     storage.PriceStore
	window    *ratelimit.Window
	tokens    storage.TokenStore
	cache     *cache.PriceCache

	interval    time.Duration
	callTimeout time.Duration
	log         logrus.FieldLogger

	mu        sync.Mutex
	watchlist map[string]struct{}

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	now func() time.Time
}

// New creates a Collector. Panics on missing required collaborators; that is
// an assembly bug, not a runtime condition.
func New(opts Options) *Collector {
	if opts.Bus == nil {
		panic("collector: nil bus")
	}
	if len(opts.Providers) == 0 {
		panic("collector: no providers")
	}
	if opts.Store == nil {
		panic("collector: nil store")
	}
	if opts.Window == nil {
		panic("collector: nil rate window")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Collector{
		bus:         opts.Bus,
		providers:   opts.Providers,
		store:       opts.Store,
		window:      opts.Window,
		tokens:      opts.Tokens,
		cache:       opts.Cache,
		interval:    opts.Interval,
		callTimeout: opts.CallTimeout,
		log:         log.WithField("component", "collector"),
		watchlist:   make(map[string]struct{}),
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
}

// SeedWatchlist loads the persisted watchlist from the token store. No-op
// without a token store.
func (c *Collector) SeedWatchlist(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	tokens, err := c.tokens.ListWatchlisted(ctx)
	if err != nil {
		return fmt.Errorf("seed watchlist: %w", err)
	}

	c.mu.Lock()
	for _, t := range tokens {
		c.watchlist[normalize.LowerAddress(t.Address)] = struct{}{}
	}
	size := len(c.watchlist)
	c.mu.Unlock()

	c.log.WithField("size", size).Info("watchlist seeded")
	return nil
}

// AddToken adds an address to the watchlist, effective from the next cycle.
// When a token store is configured the membership is persisted best-effort.
func (c *Collector) AddToken(ctx context.Context, address string) {
	addr := normalize.LowerAddress(address)

	c.mu.Lock()
	c.watchlist[addr] = struct{}{}
	c.mu.Unlock()

	if c.tokens != nil {
		err := c.tokens.Upsert(ctx, &domain.Token{
			Address:     addr,
			Watchlisted: true,
			CreatedAtMs: c.now().UnixMilli(),
		})
		if err != nil {
			c.log.WithError(err).WithField("address", addr).Warn("persist watchlist add failed")
		}
	}
}

// RemoveToken removes an address from the watchlist, effective from the next
// cycle.
func (c *Collector) RemoveToken(ctx context.Context, address string) {
	addr := normalize.LowerAddress(address)

	c.mu.Lock()
	delete(c.watchlist, addr)
	c.mu.Unlock()

	if c.tokens != nil {
		if err := c.tokens.SetWatchlisted(ctx, addr, false); err != nil {
			c.log.WithError(err).WithField("address", addr).Warn("persist watchlist remove failed")
		}
	}
}

// Watchlist returns a sorted snapshot of the watched addresses.
func (c *Collector) Watchlist() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	addrs := make([]string, 0, len(c.watchlist))
	for addr := range c.watchlist {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Run enters the collection loop and blocks until Stop is called or ctx is
// cancelled. The stop flag is observed at the top of each cycle and during
// the inter-cycle sleep, so shutdown latency is capped by one interval.
// Calling Run while already running is a no-op.
func (c *Collector) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return nil
	}
	defer c.running.Store(false)

	c.log.WithField("interval", c.interval).Info("collection loop started")
	for {
		select {
		case <-c.stopCh:
			c.log.Info("collection loop stopped")
			return nil
		case <-ctx.Done():
			c.log.Info("collection loop stopped")
			return ctx.Err()
		default:
		}

		c.runCycle(ctx)

		select {
		case <-c.stopCh:
			c.log.Info("collection loop stopped")
			return nil
		case <-ctx.Done():
			c.log.Info("collection loop stopped")
			return ctx.Err()
		case <-time.After(c.interval):
		}
	}
}

// Stop requests the collection loop to exit. Idempotent; the cycle in
// progress finishes first.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// runCycle executes one cycle and never lets a failure escape: the loop must
// outlive any single bad cycle.
func (c *Collector) runCycle(ctx context.Context) {
	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			observability.RecordCycle("panic", c.now().Sub(start).Seconds())
			c.log.WithField("panic", r).Error("collection cycle panicked")
		}
	}()

	collected := c.Collect(ctx, c.Watchlist())
	observability.RecordCycle("success", c.now().Sub(start).Seconds())
	c.log.WithFields(logrus.Fields{
		"collected": len(collected),
		"elapsed":   c.now().Sub(start).String(),
	}).Debug("collection cycle finished")
}

// Collect fetches price data for the given addresses. Each successful record
// is published, then stored, then cached. Addresses for which every provider
// fails are omitted; a storage failure does not abort the remaining tokens.
func (c *Collector) Collect(ctx context.Context, addresses []string) []*domain.PriceRecord {
	var collected []*domain.PriceRecord
	for _, address := range addresses {
		rec := c.collectOne(ctx, address)
		if rec == nil {
			continue
		}

		// Publish before storing so consumers never wait on the database.
		c.bus.Publish(bus.NewEvent(domain.EventPriceUpdate, rec.Source, rec.EventPayload()))

		if err := c.store.InsertTick(ctx, rec.Tick()); err != nil {
			observability.RecordStoreError("insert_tick")
			c.log.WithError(err).WithField("address", address).Warn("store tick failed")
		} else {
			observability.RecordTickStored()
			if c.cache != nil {
				if err := c.cache.SetPrice(ctx, rec.Address, rec.Price); err != nil {
					c.log.WithError(err).WithField("address", address).Warn("cache price failed")
				}
			}
		}

		collected = append(collected, rec)
	}
	return collected
}

// collectOne tries each provider in priority order and returns the first
// normalized record, or nil if every provider failed this cycle.
func (c *Collector) collectOne(ctx context.Context, address string) *domain.PriceRecord {
	for _, p := range c.providers {
		name := p.Name()
		if !c.window.Allow(ctx, name, rateKey) {
			observability.RecordRateLimitSkip(name)
			c.log.WithFields(logrus.Fields{"provider": name, "address": address}).
				Debug("rate window saturated, skipping provider")
			continue
		}

		payload, err := c.fetchInfo(ctx, p, address)
		if err != nil {
			observability.RecordProviderRequest(name, "error")
			c.log.WithError(err).WithFields(logrus.Fields{
				"provider": name,
				"address":  address,
			}).Warn("provider fetch failed")
			continue
		}

		rec, err := normalize.Record(payload, name, c.now())
		if err != nil {
			observability.RecordProviderRequest(name, "rejected")
			c.log.WithError(err).WithFields(logrus.Fields{
				"provider": name,
				"address":  address,
			}).Warn("payload rejected")
			continue
		}
		if rec.Address == "" {
			rec.Address = normalize.LowerAddress(address)
		}

		observability.RecordProviderRequest(name, "success")
		return rec
	}

	c.log.WithField("address", address).Debug("all providers failed")
	return nil
}

func (c *Collector) fetchInfo(ctx context.Context, p provider.Provider, address string) (provider.Payload, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	return p.TokenInfo(callCtx, address)
}
