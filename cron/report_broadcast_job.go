package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/omnivault/oracle-node/oracle"
)

// ReportSender pushes a report batch to one destination chain.
type ReportSender interface {
	SendReports(ctx context.Context, dstChainID uint64, reports []oracle.Report, callerOptions []byte, feeBudget sdkmath.Int) error
}

// ReportBuilder produces the local report set.
type ReportBuilder interface {
	BuildLocalReports(ctx context.Context) []oracle.Report
}

// PeerLister enumerates the destination chains to broadcast to.
type PeerLister interface {
	ChainIDs() []uint64
}

// ReportBroadcastJob periodically reads the local vaults and pushes their
// reports to every configured peer chain.
type ReportBroadcastJob struct {
	builder  ReportBuilder
	sender   ReportSender
	peers    PeerLister
	vaults   []common.Address // empty means broadcast every local vault
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup
}

// NewReportBroadcastJob creates the job. interval <= 0 selects five minutes.
func NewReportBroadcastJob(builder ReportBuilder, sender ReportSender, peers PeerLister, vaults []common.Address, interval time.Duration, logger zerolog.Logger) *ReportBroadcastJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReportBroadcastJob{
		builder:  builder,
		sender:   sender,
		peers:    peers,
		vaults:   vaults,
		interval: interval,
		logger:   logger.With().Str("component", "report_broadcast_cron").Logger(),
	}
}

// Start launches the background loop and returns immediately (non-blocking).
// Safe to call multiple times; subsequent calls are no-ops.
func (j *ReportBroadcastJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.builder == nil || j.sender == nil || j.peers == nil {
		return errors.New("cron: builder, sender and peers must be non-nil")
	}

	j.stopCh = make(chan struct{})
	j.forceCh = make(chan struct{}, 1)
	j.running = true
	j.wg.Add(1)

	go j.run(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
// Safe to call multiple times.
func (j *ReportBroadcastJob) Stop() {
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

// ForceBroadcast triggers an immediate broadcast without waiting for the
// ticker.
func (j *ReportBroadcastJob) ForceBroadcast() {
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

func (j *ReportBroadcastJob) run(parent context.Context) {
	defer j.wg.Done()

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-parent.Done():
			j.logger.Info().Msg("report broadcast cron: context canceled; stopping")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("report broadcast cron: stop requested; stopping")
			return
		case <-t.C:
			j.broadcastOnce(parent)
		case <-j.forceCh:
			j.broadcastOnce(parent)
		}
	}
}

func (j *ReportBroadcastJob) broadcastOnce(ctx context.Context) {
	reports := j.builder.BuildLocalReports(ctx)
	if len(j.vaults) > 0 {
		wanted := make(map[common.Address]struct{}, len(j.vaults))
		for _, v := range j.vaults {
			wanted[v] = struct{}{}
		}
		filtered := reports[:0]
		for _, r := range reports {
			if _, ok := wanted[r.VaultAddress]; ok {
				filtered = append(filtered, r)
			}
		}
		reports = filtered
	}
	if len(reports) == 0 {
		j.logger.Debug().Msg("no local reports to broadcast")
		return
	}

	for _, chainID := range j.peers.ChainIDs() {
		// A nil budget pays whatever the transport quotes.
		if err := j.sender.SendReports(ctx, chainID, reports, nil, sdkmath.Int{}); err != nil {
			j.logger.Warn().Err(err).Uint64("dst_chain_id", chainID).Msg("report broadcast failed; will retry next round")
		}
	}
}
