// Package quizboard defines the quiz result domain: the persisted result,
// its ordering, the store and publisher contracts, and the submission
// pipeline that ties them together.
package quizboard

import (
	"encoding/json"
	"time"
)

// LeaderboardSize is the fixed number of standings pushed on every
// leaderboard refresh, independent of any per-request limit.
const LeaderboardSize = 20

// MaxPlayerNameLength is counted in characters, not bytes.
const MaxPlayerNameLength = 20

// Result is a persisted quiz submission. ID and CompletedAt are assigned
// by the store on insert and never change.
type Result struct {
	ID             int64
	PlayerName     string
	Score          int
	CorrectAnswers int
	TotalQuestions int
	TimeTaken      int
	Answers        json.RawMessage
	CompletedAt    time.Time
	SourceAddress  string
}

// NewResult is what the pipeline hands to Store.Insert.
type NewResult struct {
	PlayerName     string
	Score          int
	CorrectAnswers int
	TotalQuestions int
	TimeTaken      int
	Answers        json.RawMessage
	SourceAddress  string
}

// Standing is a result annotated with its 1-based rank. It is the shape
// of both the leaderboard endpoint rows and leaderboard-update payloads.
type Standing struct {
	PlayerName     string    `json:"playerName"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	TimeTaken      int       `json:"timeTaken"`
	CompletionTime time.Time `json:"completionTime"`
	Rank           int       `json:"rank"`
}

// Stats aggregates every stored result. All fields are zero for an empty
// store.
type Stats struct {
	TotalParticipants int     `json:"totalParticipants"`
	AverageScore      float64 `json:"averageScore"`
	HighestScore      int     `json:"highestScore"`
	LowestScore       int     `json:"lowestScore"`
}

// ScoreUpdate is the live-score-update payload.
type ScoreUpdate struct {
	PlayerName   string `json:"playerName"`
	CurrentScore int    `json:"currentScore"`
	Rank         int    `json:"rank"`
}

// Beats reports whether a ranks strictly ahead of b: higher score first,
// then earlier completion, then lower id. A result never beats itself.
//
// The SQL store encodes the same order; tests hold the two together.
func Beats(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.Before(b.CompletedAt)
	}
	return a.ID < b.ID
}

// StandingOf annotates r with rank.
func StandingOf(r Result, rank int) Standing {
	return Standing{
		PlayerName:     r.PlayerName,
		Score:          r.Score,
		CorrectAnswers: r.CorrectAnswers,
		TotalQuestions: r.TotalQuestions,
		TimeTaken:      r.TimeTaken,
		CompletionTime: r.CompletedAt,
		Rank:           rank,
	}
}
