// Package realtime pushes live leaderboard snapshots to websocket watchers.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/events"
	"edugame/internal/models"
)

const snapshotTimeout = 5 * time.Second

// LeaderboardFunc computes the leaderboard for a subject and grade (zero values match all)
type LeaderboardFunc func(ctx context.Context, subject models.Subject, grade int) ([]models.LeaderboardEntry, error)

// Message is the frame sent to watchers
type Message struct {
	Type    string                    `json:"type"`
	Payload []models.LeaderboardEntry `json:"payload"`
}

// Hub tracks watchers and refreshes them whenever a game completes.
// It implements events.Publisher so it can sit in an events.Multi.
type Hub struct {
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	refresh     chan struct{}
	done        chan struct{}
	leaderboard LeaderboardFunc
	log         logrus.FieldLogger
}

func NewHub(leaderboard LeaderboardFunc, log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		refresh:     make(chan struct{}, 1),
		done:        make(chan struct{}),
		leaderboard: leaderboard,
		log:         log,
	}
}

// Register adds a watcher; it receives a snapshot straight away
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish schedules a refresh on game completion without blocking the caller.
// Bursts of completions collapse into one refresh.
func (h *Hub) Publish(_ context.Context, topic string, _ any) error {
	if topic != events.TopicGameCompleted {
		return nil
	}
	select {
	case h.refresh <- struct{}{}:
	default:
	}
	return nil
}

// Run serves registrations and refreshes until ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.push(ctx, c)

		case c := <-h.unregister:
			h.remove(c)

		case <-h.refresh:
			for c := range h.clients {
				h.push(ctx, c)
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) push(ctx context.Context, c *Client) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	entries, err := h.leaderboard(ctx, c.Subject, c.Grade)
	if err != nil {
		h.log.WithError(err).Error("failed to compute leaderboard snapshot")
		return
	}

	data, err := json.Marshal(Message{Type: "leaderboard", Payload: entries})
	if err != nil {
		h.log.WithError(err).Error("failed to encode leaderboard snapshot")
		return
	}

	select {
	case c.send <- data:
	default:
		h.log.Warn("leaderboard watcher is too slow, disconnecting")
		h.remove(c)
	}
}
