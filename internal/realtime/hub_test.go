package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/events"
	"edugame/internal/logger"
	"edugame/internal/models"
)

func TestHubPushesSnapshots(t *testing.T) {
	var calls atomic.Int32
	leaderboard := func(_ context.Context, subject models.Subject, grade int) ([]models.LeaderboardEntry, error) {
		n := calls.Add(1)
		return []models.LeaderboardEntry{{Rank: 1, StudentName: "Ada", Score: int(n), Subject: subject, Grade: grade}}, nil
	}

	hub := NewHub(leaderboard, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, models.SubjectMath, 2)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "leaderboard", first.Type)
	require.Len(t, first.Payload, 1)
	assert.Equal(t, models.SubjectMath, first.Payload[0].Subject)
	assert.Equal(t, 2, first.Payload[0].Grade)

	require.NoError(t, hub.Publish(ctx, events.TopicFeedbackSubmitted, nil))
	require.NoError(t, hub.Publish(ctx, events.TopicGameCompleted, nil))

	var second Message
	require.NoError(t, conn.ReadJSON(&second))
	require.Len(t, second.Payload, 1)
	assert.Equal(t, 2, second.Payload[0].Score, "only game completion triggers a refresh")
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil, logger.Discard())
	for i := 0; i < 10; i++ {
		assert.NoError(t, hub.Publish(context.Background(), events.TopicGameCompleted, nil))
	}
}
