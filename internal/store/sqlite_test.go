package store

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/quizboard/internal/database"
	"github.com/playperu/quizboard/internal/migrations"
	"github.com/playperu/quizboard/internal/quizboard"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.Run(db))

	s, err := New(ctx, db, opts...)
	require.NoError(t, err)
	return s
}

func insert(t *testing.T, s *SQLiteStore, name string, score int) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), quizboard.NewResult{
		PlayerName:     name,
		Score:          score,
		CorrectAnswers: score / 10,
		TotalQuestions: 10,
		TimeTaken:      60,
	})
	require.NoError(t, err)
	return id
}

func rankOf(t *testing.T, s *SQLiteStore, score int, id int64) int {
	t.Helper()
	rank, err := s.RankOf(context.Background(), score, id)
	require.NoError(t, err)
	return rank
}

func TestRankScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := insert(t, s, "A", 10)
	b := insert(t, s, "B", 20)
	c := insert(t, s, "C", 20)

	assert.Equal(t, 1, rankOf(t, s, 20, b))
	assert.Equal(t, 2, rankOf(t, s, 20, c))
	assert.Equal(t, 3, rankOf(t, s, 10, a))

	top, err := s.TopN(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	names := []string{top[0].PlayerName, top[1].PlayerName, top[2].PlayerName}
	assert.Equal(t, []string{"B", "C", "A"}, names)
	for i, st := range top {
		assert.Equal(t, i+1, st.Rank)
	}
}

func TestEqualScoresRankByCompletionOrder(t *testing.T) {
	// A frozen clock still yields strictly increasing completion times.
	frozen := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return frozen }))

	first := insert(t, s, "first", 50)
	second := insert(t, s, "second", 50)
	third := insert(t, s, "third", 50)

	assert.Equal(t, 1, rankOf(t, s, 50, first))
	assert.Equal(t, 2, rankOf(t, s, 50, second))
	assert.Equal(t, 3, rankOf(t, s, 50, third))

	r1, err := s.Get(context.Background(), first)
	require.NoError(t, err)
	r2, err := s.Get(context.Background(), second)
	require.NoError(t, err)
	assert.True(t, r1.CompletedAt.Before(r2.CompletedAt))
}

func TestRankMatchesComparator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))

	var ids []int64
	for range 60 {
		ids = append(ids, insert(t, s, "p", rng.IntN(8)*5))
	}

	var all []quizboard.Result
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		require.NoError(t, err)
		all = append(all, r)
	}

	for _, r := range all {
		want := 1
		for _, other := range all {
			if quizboard.Beats(other, r) {
				want++
			}
		}
		got := rankOf(t, s, r.Score, r.ID)
		assert.Equal(t, want, got, "rank of id %d", r.ID)
		assert.GreaterOrEqual(t, got, 1)
		assert.LessOrEqual(t, got, len(all))
	}

	slices.SortFunc(all, func(a, b quizboard.Result) int {
		if quizboard.Beats(a, b) {
			return -1
		}
		return 1
	})

	top, err := s.TopN(ctx, len(all))
	require.NoError(t, err)
	require.Len(t, top, len(all))
	for i, st := range top {
		assert.Equal(t, all[i].Score, st.Score)
		assert.True(t, all[i].CompletedAt.Equal(st.CompletionTime))
		assert.Equal(t, rankOf(t, s, all[i].Score, all[i].ID), st.Rank)
	}
}

func TestHigherScoreNeverRanksBelow(t *testing.T) {
	s := newTestStore(t)

	low := insert(t, s, "low", 30)
	high := insert(t, s, "high", 31)

	assert.Less(t, rankOf(t, s, 31, high), rankOf(t, s, 30, low))
}

func TestTopNBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		insert(t, s, "p", i)
	}

	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: -1, want: 0},
		{n: 3, want: 3},
		{n: 5, want: 5},
		{n: 50, want: 5},
	}
	for _, tt := range tests {
		top, err := s.TopN(ctx, tt.n)
		require.NoError(t, err)
		assert.NotNil(t, top)
		assert.Len(t, top, tt.want, "TopN(%d)", tt.n)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, quizboard.Stats{}, st)

	top, err := s.TopN(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, "a", 10)
	insert(t, s, "b", 20)
	insert(t, s, "c", 30)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalParticipants)
	assert.InDelta(t, 20.0, st.AverageScore, 1e-9)
	assert.Equal(t, 30, st.HighestScore)
	assert.Equal(t, 10, st.LowestScore)
}

func TestInsertKeepsPayloadVerbatim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	answers := json.RawMessage(`[{"q":1,"a":"B"},{"q":2,"a":null}]`)
	id, err := s.Insert(ctx, quizboard.NewResult{
		PlayerName:    "Ana",
		Score:         70,
		Answers:       answers,
		SourceAddress: "203.0.113.7",
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.JSONEq(t, string(answers), string(got.Answers))
	assert.Equal(t, "203.0.113.7", got.SourceAddress)
	assert.False(t, got.CompletedAt.IsZero())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIDsIncrease(t *testing.T) {
	s := newTestStore(t)
	a := insert(t, s, "a", 1)
	b := insert(t, s, "b", 1)
	assert.Greater(t, b, a)
}

func TestRankOfUnknownID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RankOf(context.Background(), 10, 42)
	require.ErrorIs(t, err, quizboard.ErrNotFound)

	_, err = s.Get(context.Background(), 42)
	require.ErrorIs(t, err, quizboard.ErrNotFound)
}

func TestClosedDatabaseIsStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Memory)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))

	s, err := New(ctx, db)
	require.NoError(t, err)
	db.Close()

	_, err = s.Insert(ctx, quizboard.NewResult{PlayerName: "x"})
	require.ErrorIs(t, err, quizboard.ErrStorageUnavailable)

	_, err = s.Stats(ctx)
	require.ErrorIs(t, err, quizboard.ErrStorageUnavailable)

	_, err = s.TopN(ctx, 5)
	require.ErrorIs(t, err, quizboard.ErrStorageUnavailable)
}
