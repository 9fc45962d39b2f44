// Package cron runs the daemon's periodic background jobs.
package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	oerrors "github.com/omnivault/oracle-node/errors"
	"github.com/omnivault/oracle-node/pricing"
)

// PriceRefreshJob periodically re-resolves every categorized asset's price so
// the cache stays warm for the fallback path.
type PriceRefreshJob struct {
	resolver        *pricing.Resolver
	assets          *pricing.AssetRegistry
	interval        time.Duration
	perAssetTimeout time.Duration
	logger          zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup
}

// NewPriceRefreshJob creates the job. interval <= 0 selects one minute.
func NewPriceRefreshJob(resolver *pricing.Resolver, assets *pricing.AssetRegistry, interval time.Duration, logger zerolog.Logger) *PriceRefreshJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PriceRefreshJob{
		resolver:        resolver,
		assets:          assets,
		interval:        interval,
		perAssetTimeout: 8 * time.Second,
		logger:          logger.With().Str("component", "price_refresh_cron").Logger(),
	}
}

// Start launches the background loop and returns immediately (non-blocking).
// Safe to call multiple times; subsequent calls are no-ops.
func (j *PriceRefreshJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.resolver == nil || j.assets == nil {
		return errors.New("cron: resolver and assets must be non-nil")
	}

	j.stopCh = make(chan struct{})
	j.forceCh = make(chan struct{}, 1) // buffered so ForceRefresh won't block
	j.running = true
	j.wg.Add(1)

	go j.run(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
// Safe to call multiple times.
func (j *PriceRefreshJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.running = false
	j.mu.Unlock()
	j.wg.Wait()
}

// ForceRefresh triggers an immediate refresh without waiting for the ticker.
func (j *PriceRefreshJob) ForceRefresh() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	select {
	case j.forceCh <- struct{}{}:
	default:
	}
}

func (j *PriceRefreshJob) run(parent context.Context) {
	defer j.wg.Done()

	j.refreshAll(parent)

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-parent.Done():
			j.logger.Info().Msg("price refresh cron: context canceled; stopping")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("price refresh cron: stop requested; stopping")
			return
		case <-t.C:
			j.refreshAll(parent)
		case <-j.forceCh:
			j.refreshAll(parent)
		}
	}
}

// refreshAll walks the asset catalog. A per-asset failure is logged and the
// walk continues; the sequencer gate failing fast aborts the whole round.
func (j *PriceRefreshJob) refreshAll(ctx context.Context) {
	for _, info := range j.assets.All() {
		if info.Category == pricing.CategoryUnknown {
			continue
		}
		wantUSD := info.Category == pricing.CategoryStable

		assetCtx, cancel := context.WithTimeout(ctx, j.perAssetTimeout)
		err := j.resolver.UpdatePrice(assetCtx, info.Addr, wantUSD)
		if !wantUSD && err == nil {
			// Non-stables are also quoted in USD for cross-category paths.
			err = j.resolver.UpdatePrice(assetCtx, info.Addr, true)
		}
		cancel()

		if err == nil {
			continue
		}
		if oerrors.Is(err, oerrors.ErrSequencerDown) {
			j.logger.Warn().Msg("sequencer down; skipping this refresh round")
			return
		}
		j.logger.Warn().Err(err).Str("asset", info.Addr.Hex()).Msg("price refresh failed; keeping previous cache")
	}
}
