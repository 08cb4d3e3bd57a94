// Package chat posts canned in-match chat lines over the backend's match
// chat websocket.
package chat

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var defaultMessages = []string{
	"Good game!",
	"Nice shot!",
	"Well played!",
	"That was close!",
	"Having fun!",
	"Great match!",
	"You're really good!",
	"Lucky shot!",
	"Let's play again sometime!",
	"GG!",
}

type message struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// Sender dials the per-match chat endpoint and sends one message per call.
// Chat is decorative traffic: every failure is the caller's to log and
// ignore.
type Sender struct {
	baseURL  string // ws:// or wss:// base, e.g. ws://backend:8000/ws/chat
	dialer   *websocket.Dialer
	log      *zap.SugaredLogger
	messages []string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSender(baseURL string, log *zap.SugaredLogger, rnd *rand.Rand) *Sender {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Sender{
		baseURL: baseURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		log:      log,
		rnd:      rnd,
		messages: defaultMessages,
	}
}

// Send posts one random canned message to the match's chat channel as the
// given sender.
func (s *Sender) Send(ctx context.Context, matchID, sender string) error {
	url := fmt.Sprintf("%s/%s/", s.baseURL, matchID)

	conn, resp, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial chat %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	msg := message{Message: s.pick(), Sender: sender}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}

	s.log.Debugw("chat message sent", "match", matchID, "sender", sender, "message", msg.Message)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

func (s *Sender) pick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[s.rnd.Intn(len(s.messages))]
}
