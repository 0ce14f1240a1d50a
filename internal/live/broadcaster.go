package live

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playperu/quizboard/internal/quizboard"
)

// Leaderboard is the read side the broadcaster snapshots.
type Leaderboard interface {
	TopN(ctx context.Context, n int) ([]quizboard.Standing, error)
}

// Broadcaster implements quizboard.Publisher on top of a Hub.
//
// Score updates go out synchronously. Leaderboard refreshes are handed to
// the Run loop, which coalesces pending requests and reads the top
// standings at send time, so every snapshot reflects the store as it is
// when sent.
type Broadcaster struct {
	hub     *Hub
	board   Leaderboard
	logger  *slog.Logger
	refresh chan struct{}
}

func NewBroadcaster(hub *Hub, board Leaderboard, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:     hub,
		board:   board,
		logger:  logger,
		refresh: make(chan struct{}, 1),
	}
}

func (b *Broadcaster) PublishScore(u quizboard.ScoreUpdate) error {
	return b.hub.Publish(EventLiveScoreUpdate, u)
}

// RefreshLeaderboard schedules a snapshot broadcast and returns at once.
func (b *Broadcaster) RefreshLeaderboard() error {
	select {
	case b.refresh <- struct{}{}:
	default:
		// A refresh is already pending; it will read current state.
	}
	return nil
}

// Run sends scheduled snapshots until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.refresh:
			if err := b.broadcast(ctx); err != nil {
				b.logger.Warn("leaderboard broadcast failed", "error", err)
			}
		}
	}
}

func (b *Broadcaster) broadcast(ctx context.Context) error {
	standings, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := b.hub.Publish(EventLeaderboardUpdate, standings); err != nil {
		return fmt.Errorf("%w: %w", quizboard.ErrBroadcast, err)
	}
	b.logger.Debug("leaderboard broadcast", "entries", len(standings), "subscribers", b.hub.Len())
	return nil
}

// Welcome sends the current snapshot to one new subscriber.
func (b *Broadcaster) Welcome(ctx context.Context, subscriberID string) error {
	standings, err := b.snapshot(ctx)
	if err != nil {
		return err
	}
	if err := b.hub.Send(subscriberID, EventLeaderboardUpdate, standings); err != nil {
		return fmt.Errorf("%w: %w", quizboard.ErrBroadcast, err)
	}
	return nil
}

func (b *Broadcaster) snapshot(ctx context.Context) ([]quizboard.Standing, error) {
	standings, err := b.board.TopN(ctx, quizboard.LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("%w: reading leaderboard: %w", quizboard.ErrBroadcast, err)
	}
	return standings, nil
}
