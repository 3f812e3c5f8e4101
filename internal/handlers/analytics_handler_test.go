package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/models"
	"edugame/internal/realtime"
)

func TestLiveLeaderboard(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/analytics/leaderboard/live"

	t.Run("students are refused", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?access_token="+api.token("emma@edugame.com"), nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("teachers get a snapshot and updates", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?access_token="+api.token("teacher@edugame.com"), nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg realtime.Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "leaderboard", msg.Type)

		rec := api.do(http.MethodGet, "/api/levels", "", nil)
		levels := *decode[[]models.Level](t, rec)
		require.NotEmpty(t, levels)

		rec = api.do(http.MethodPost, "/api/games/start", "", map[string]string{"levelId": levels[0].ID, "studentName": "Live Player"})
		require.Equal(t, http.StatusCreated, rec.Code)
		session := decode[sessionView](t, rec)
		rec = api.do(http.MethodPost, "/api/games/"+session.ID+"/complete", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		msg = realtime.Message{}
		require.NoError(t, conn.ReadJSON(&msg))

		var names []string
		for _, entry := range msg.Payload {
			names = append(names, entry.StudentName)
		}
		assert.Contains(t, names, "Live Player")
	})
}
