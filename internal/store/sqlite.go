// Package store persists quiz results in SQLite and answers the ranking
// queries over them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playperu/quizboard/internal/quizboard"
)

// Both fragments encode quizboard.Beats: score DESC, completed_at ASC,
// id ASC.
const (
	standingOrder = `score DESC, completed_at ASC, id ASC`

	// Parameters: score, score, completed_at, completed_at, id.
	beatsPredicate = `score > ?
		OR (score = ? AND (completed_at < ? OR (completed_at = ? AND id < ?)))`
)

// SQLiteStore implements quizboard.Store. Completion times are Unix
// nanoseconds assigned here, strictly increasing across inserts made
// through one SQLiteStore.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock replaces time.Now for completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// New expects db to be migrated already.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(completed_at), 0) FROM quiz_results`).Scan(&s.last)
	if err != nil {
		return nil, unavailable("reading last completion time", err)
	}
	return s, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, quizboard.ErrStorageUnavailable, err)
}

// stamp returns the next completion time.
func (s *SQLiteStore) stamp() int64 {
	ts := s.now().UnixNano()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

func (s *SQLiteStore) Insert(ctx context.Context, r quizboard.NewResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var answers sql.NullString
	if len(r.Answers) > 0 {
		answers = sql.NullString{String: string(r.Answers), Valid: true}
	}

	prev := s.last
	ts := s.stamp()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO quiz_results
			(player_name, score, correct_answers, total_questions, time_taken, answers, completed_at, source_address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, r.PlayerName, r.Score, r.CorrectAnswers, r.TotalQuestions, r.TimeTaken, answers, ts, r.SourceAddress).Scan(&id)
	if err != nil {
		s.last = prev
		return 0, unavailable("inserting quiz result", err)
	}
	return id, nil
}

func (s *SQLiteStore) RankOf(ctx context.Context, score int, id int64) (int, error) {
	var completedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT completed_at FROM quiz_results WHERE id = ?`, id).Scan(&completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("result %d: %w", id, quizboard.ErrNotFound)
	}
	if err != nil {
		return 0, unavailable("reading quiz result", err)
	}

	var ahead int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_results WHERE `+beatsPredicate,
		score, score, completedAt, completedAt, id,
	).Scan(&ahead)
	if err != nil {
		return 0, unavailable("counting results ahead", err)
	}
	return ahead + 1, nil
}

func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]quizboard.Standing, error) {
	if n <= 0 {
		return []quizboard.Standing{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT player_name, score, correct_answers, total_questions, time_taken, completed_at
		FROM quiz_results
		ORDER BY `+standingOrder+`
		LIMIT ?
	`, n)
	if err != nil {
		return nil, unavailable("querying leaderboard", err)
	}
	defer rows.Close()

	standings := make([]quizboard.Standing, 0, n)
	for rows.Next() {
		var st quizboard.Standing
		var completedAt int64
		if err := rows.Scan(&st.PlayerName, &st.Score, &st.CorrectAnswers, &st.TotalQuestions, &st.TimeTaken, &completedAt); err != nil {
			return nil, unavailable("scanning leaderboard", err)
		}
		st.CompletionTime = time.Unix(0, completedAt).UTC()
		// The order is total, so position equals 1 + results ahead.
		st.Rank = len(standings) + 1
		standings = append(standings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating leaderboard", err)
	}
	return standings, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (quizboard.Stats, error) {
	var st quizboard.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(AVG(score), 0.0),
			COALESCE(MAX(score), 0),
			COALESCE(MIN(score), 0)
		FROM quiz_results
	`).Scan(&st.TotalParticipants, &st.AverageScore, &st.HighestScore, &st.LowestScore)
	if err != nil {
		return quizboard.Stats{}, unavailable("querying stats", err)
	}
	return st, nil
}

// Get returns the stored result, including the verbatim answers payload.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (quizboard.Result, error) {
	var r quizboard.Result
	var answers sql.NullString
	var completedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, player_name, score, correct_answers, total_questions, time_taken, answers, completed_at, source_address
		FROM quiz_results WHERE id = ?
	`, id).Scan(&r.ID, &r.PlayerName, &r.Score, &r.CorrectAnswers, &r.TotalQuestions, &r.TimeTaken, &answers, &completedAt, &r.SourceAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("result %d: %w", id, quizboard.ErrNotFound)
	}
	if err != nil {
		return r, unavailable("reading quiz result", err)
	}
	if answers.Valid {
		r.Answers = []byte(answers.String)
	}
	r.CompletedAt = time.Unix(0, completedAt).UTC()
	return r, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_results`).Scan(&n); err != nil {
		return 0, unavailable("counting results", err)
	}
	return n, nil
}

