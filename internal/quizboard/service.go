package quizboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store is the result table. Implementations wrap every driver fault in
// ErrStorageUnavailable.
type Store interface {
	// Insert appends r, assigning its id and completion time.
	Insert(ctx context.Context, r NewResult) (int64, error)
	// RankOf returns 1 + the number of results that beat the result with
	// the given id if it had the given score.
	RankOf(ctx context.Context, score int, id int64) (int, error)
	// TopN returns at most n standings in rank order.
	TopN(ctx context.Context, n int) ([]Standing, error)
	Stats(ctx context.Context) (Stats, error)
}

// Publisher fans submission events out to live subscribers. Both calls
// must return without waiting on subscribers.
type Publisher interface {
	PublishScore(u ScoreUpdate) error
	RefreshLeaderboard() error
}

// Receipt is the successful submission response.
type Receipt struct {
	Success bool   `json:"success"`
	Rank    int    `json:"rank"`
	Message string `json:"message"`
}

// Service runs the submission pipeline: validate, persist, rank,
// broadcast. Persist and rank for one submission run under a single lock,
// so the returned rank reflects the store right after that insert.
type Service struct {
	store  Store
	pub    Publisher
	logger *slog.Logger

	mu sync.Mutex
}

func NewService(store Store, pub Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, pub: pub, logger: logger}
}

// Submit validates and records sub. source is the caller's address and is
// stored for information only.
//
// An ErrRankFailed error means the result was stored but its rank is
// unknown; the stored row is kept.
func (s *Service) Submit(ctx context.Context, sub Submission, source string) (Receipt, error) {
	sub = sub.Normalize()
	if err := sub.Validate(); err != nil {
		return Receipt{}, err
	}

	// Once the insert starts the pipeline runs to completion even if the
	// caller goes away.
	ctx = context.WithoutCancel(ctx)

	r := sub.newResult(source)
	id, rank, err := s.record(ctx, r)
	if err != nil {
		return Receipt{}, err
	}

	s.logger.Info("quiz result recorded",
		"id", id,
		"player", r.PlayerName,
		"score", r.Score,
		"rank", rank,
	)

	s.broadcast(ScoreUpdate{PlayerName: r.PlayerName, CurrentScore: r.Score, Rank: rank})

	return Receipt{
		Success: true,
		Rank:    rank,
		Message: fmt.Sprintf("Quiz submitted successfully. You are ranked #%d.", rank),
	}, nil
}

func (s *Service) record(ctx context.Context, r NewResult) (int64, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.store.Insert(ctx, r)
	if err != nil {
		if !errors.Is(err, ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return 0, 0, fmt.Errorf("inserting result: %w", err)
	}

	rank, err := s.store.RankOf(ctx, r.Score, id)
	if err != nil {
		return id, 0, fmt.Errorf("%w for result %d: %w", ErrRankFailed, id, err)
	}
	return id, rank, nil
}

func (s *Service) broadcast(u ScoreUpdate) {
	if err := s.pub.PublishScore(u); err != nil {
		s.logger.Warn("live score update not published",
			"player", u.PlayerName,
			"error", fmt.Errorf("%w: %w", ErrBroadcast, err),
		)
	}
	if err := s.pub.RefreshLeaderboard(); err != nil {
		s.logger.Warn("leaderboard refresh not scheduled",
			"error", fmt.Errorf("%w: %w", ErrBroadcast, err),
		)
	}
}

// Leaderboard returns the top limit standings. A non-positive limit
// yields an empty slice.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	if limit <= 0 {
		return []Standing{}, nil
	}
	standings, err := s.store.TopN(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}
	return standings, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("loading stats: %w", err)
	}
	return st, nil
}
