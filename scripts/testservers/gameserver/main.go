// Command gameserver is a throwaway in-memory game backend for manual
// simulator runs. It accepts every operation the simulator issues and can
// inject rate limiting to exercise the client's cooldown handling.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type backend struct {
	mu          sync.Mutex
	matchSeq    int
	requests    int
	elos        map[string]int
	limitEvery  int
	limitWindow int
}

func main() {
	port := flag.Int("port", 8080, "Listening port")
	limitEvery := flag.Int("rate-limit-every", 0, "Return 429 on every Nth request (0 disables)")
	limitWindow := flag.Int("retry-after", 5, "Retry-After seconds sent with injected 429s")
	flag.Parse()

	b := &backend{
		elos:        make(map[string]int),
		limitEvery:  *limitEvery,
		limitWindow: *limitWindow,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/matches", b.handleMatches)
	mux.HandleFunc("/matches/", b.handleMatchByID)
	mux.HandleFunc("/goals", b.handleGoals)
	mux.HandleFunc("/elo", b.handleEloCreate)
	mux.HandleFunc("/elo/", b.handleEloGet)
	mux.HandleFunc("/ws/chat/", handleChat)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("game server listening on %s (rate-limit-every=%d)", addr, *limitEvery)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// rateLimited injects a 429 on every Nth request when enabled.
func (b *backend) rateLimited(w http.ResponseWriter) bool {
	if b.limitEvery <= 0 {
		return false
	}
	b.mu.Lock()
	b.requests++
	hit := b.requests%b.limitEvery == 0
	b.mu.Unlock()
	if !hit {
		return false
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", b.limitWindow))
	respondJSON(w, http.StatusTooManyRequests, map[string]any{"error": "rate limited"})
	return true
}

func (b *backend) handleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if b.rateLimited(w) {
		return
	}
	b.mu.Lock()
	b.matchSeq++
	id := fmt.Sprintf("match-%d", b.matchSeq)
	b.mu.Unlock()
	log.Printf("match created: %s", id)
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (b *backend) handleMatchByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/matches/"), "/")
	if id == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "match id required"})
		return
	}
	if b.rateLimited(w) {
		return
	}
	switch r.Method {
	case http.MethodPut:
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		log.Printf("match %s updated: %v", id, payload)
		respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": "updated"})
	case http.MethodGet:
		respondJSON(w, http.StatusOK, map[string]any{
			"id":         id,
			"completed":  false,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		})
	default:
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (b *backend) handleGoals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if b.rateLimited(w) {
		return
	}
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	log.Printf("goal: %v", payload)
	respondJSON(w, http.StatusCreated, map[string]any{"status": "ok"})
}

func (b *backend) handleEloCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if b.rateLimited(w) {
		return
	}
	var payload struct {
		Player string `json:"player"`
		Elo    int    `json:"elo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Player == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "player required"})
		return
	}
	b.mu.Lock()
	b.elos[payload.Player] = payload.Elo
	b.mu.Unlock()
	log.Printf("elo set: %s = %d", payload.Player, payload.Elo)
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (b *backend) handleEloGet(w http.ResponseWriter, r *http.Request) {
	player := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/elo/"), "/")
	if player == "" {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "player required"})
		return
	}
	if b.rateLimited(w) {
		return
	}
	b.mu.Lock()
	elo, ok := b.elos[player]
	b.mu.Unlock()
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]any{"error": "unknown player"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"elo": elo})
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	go func() {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			log.Printf("chat %s: %s", r.URL.Path, data)
		}
	}()
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
