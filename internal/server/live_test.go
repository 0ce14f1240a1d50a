package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/quizboard/internal/live"
	"github.com/playperu/quizboard/internal/quizboard"
)

func startServer(t *testing.T, env *testEnv) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)
	return ts
}

func dialLive(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readLive(t *testing.T, ctx context.Context, conn *websocket.Conn) live.Message {
	t.Helper()
	var msg live.Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	return msg
}

func postSubmission(t *testing.T, ts *httptest.Server, body map[string]any) quizboard.Receipt {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/submit-quiz", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var receipt quizboard.Receipt
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	return receipt
}

func TestLiveWelcomesWithLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	ts := startServer(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	postSubmission(t, ts, submission("Ana", 40))

	conn := dialLive(t, ctx, ts)
	msg := readLive(t, ctx, conn)
	require.Equal(t, live.EventLeaderboardUpdate, msg.Type)

	var board []quizboard.Standing
	require.NoError(t, json.Unmarshal(msg.Data, &board))
	require.Len(t, board, 1)
	assert.Equal(t, "Ana", board[0].PlayerName)
	assert.Equal(t, 1, board[0].Rank)
}

func TestLiveSubmissionBroadcast(t *testing.T) {
	env := newTestEnv(t)
	ts := startServer(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialLive(t, ctx, ts)
	welcome := readLive(t, ctx, conn)
	require.Equal(t, live.EventLeaderboardUpdate, welcome.Type)
	assert.JSONEq(t, `[]`, string(welcome.Data))

	receipt := postSubmission(t, ts, submission("Ana", 70))

	msg := readLive(t, ctx, conn)
	require.Equal(t, live.EventLiveScoreUpdate, msg.Type)
	var update quizboard.ScoreUpdate
	require.NoError(t, json.Unmarshal(msg.Data, &update))
	assert.Equal(t, quizboard.ScoreUpdate{PlayerName: "Ana", CurrentScore: 70, Rank: receipt.Rank}, update)

	msg = readLive(t, ctx, conn)
	require.Equal(t, live.EventLeaderboardUpdate, msg.Type)
	var board []quizboard.Standing
	require.NoError(t, json.Unmarshal(msg.Data, &board))
	require.Len(t, board, 1)
	assert.Equal(t, 70, board[0].Score)
}

func TestLiveJoinQuiz(t *testing.T) {
	env := newTestEnv(t)
	ts := startServer(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := dialLive(t, ctx, ts)
	readLive(t, ctx, sender)
	other := dialLive(t, ctx, ts)
	readLive(t, ctx, other)

	// Junk is ignored and does not end the connection.
	require.NoError(t, sender.Write(ctx, websocket.MessageText, []byte("not json")))
	require.NoError(t, wsjson.Write(ctx, sender, map[string]any{"type": "unknown", "data": nil}))
	require.NoError(t, wsjson.Write(ctx, sender, map[string]any{
		"type": live.EventJoinQuiz,
		"data": map[string]string{"playerName": "  Bea  "},
	}))

	msg := readLive(t, ctx, other)
	require.Equal(t, live.EventPlayerJoined, msg.Type)
	var joined PlayerJoined
	require.NoError(t, json.Unmarshal(msg.Data, &joined))
	assert.Equal(t, "Bea", joined.PlayerName)
	assert.False(t, joined.Timestamp.IsZero())

	// The sender's next message is the score update, so it never saw its
	// own announcement.
	postSubmission(t, ts, submission("Bea", 10))
	msg = readLive(t, ctx, sender)
	assert.Equal(t, live.EventLiveScoreUpdate, msg.Type)
}

func TestLiveClosedOnHubShutdown(t *testing.T) {
	env := newTestEnv(t)
	ts := startServer(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialLive(t, ctx, ts)
	readLive(t, ctx, conn)

	env.deps.Hub.Close()

	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	ts := startServer(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewReader(resp.Body)
	typ, data := readEvent(t, events)
	assert.Equal(t, live.EventLeaderboardUpdate, typ)
	assert.JSONEq(t, `[]`, data)

	postSubmission(t, ts, submission("Ana", 15))

	typ, data = readEvent(t, events)
	assert.Equal(t, live.EventLiveScoreUpdate, typ)
	assert.JSONEq(t, `{"playerName":"Ana","currentScore":15,"rank":1}`, data)

	typ, _ = readEvent(t, events)
	assert.Equal(t, live.EventLeaderboardUpdate, typ)
}

// readEvent returns the next event's type and data, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var typ, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case line == "" && typ != "":
			return typ, data
		case strings.HasPrefix(line, "event: "):
			typ = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}
