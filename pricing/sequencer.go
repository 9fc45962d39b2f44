package pricing

import (
	"context"
	"time"

	oerrors "github.com/omnivault/oracle-node/errors"
)

// UptimeFeed reads a sequencer-uptime feed: whether the chain's sequencer is
// up and when that status last changed.
type UptimeFeed interface {
	Status(ctx context.Context) (up bool, changedAt time.Time, err error)
}

// SequencerGate fails price resolution while the chain's own data may be
// unreliable: the sequencer is down, or it came back up less than the grace
// period ago.
type SequencerGate struct {
	feed  UptimeFeed
	grace time.Duration
	now   func() time.Time
}

// NewSequencerGate creates a gate around an uptime feed.
func NewSequencerGate(feed UptimeFeed, grace time.Duration) *SequencerGate {
	return &SequencerGate{
		feed:  feed,
		grace: grace,
		now:   time.Now,
	}
}

// Check returns ErrSequencerDown when resolution must not proceed. A feed
// read failure is treated as down; this is a systemic signal, not a
// single-feed failure, so it propagates as a hard error.
func (g *SequencerGate) Check(ctx context.Context) error {
	up, changedAt, err := g.feed.Status(ctx)
	if err != nil {
		return oerrors.ErrSequencerDown.WithCause(err)
	}
	if !up {
		return oerrors.ErrSequencerDown
	}
	if g.now().Sub(changedAt) < g.grace {
		return oerrors.ErrSequencerDown
	}
	return nil
}
