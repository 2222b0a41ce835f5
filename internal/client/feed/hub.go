// Package feed pushes board projections to graphical boards over a
// websocket and turns their gestures into session events.
package feed

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"

	"llmchess/internal/core"
	"llmchess/internal/projection"
	"llmchess/internal/session"
)

type Hub struct {
	mu        sync.Mutex
	clients   map[*Client]struct{}
	broadcast chan []byte
	last      []byte
	post      func(session.Event)
	logger    *log.Logger
}

type Client struct {
	hub  *Hub
	send chan []byte
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type movePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type navigatePayload struct {
	To    string `json:"to,omitempty"` // first, previous, next, last
	Index *int   `json:"index,omitempty"`
}

type modePayload struct {
	Mode string `json:"mode"`
}

type modelPayload struct {
	Side  string `json:"side"`
	Model string `json:"model"`
}

func NewHub(post func(session.Event), logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan []byte, 16),
		post:      post,
		logger:    logger,
	}
}

// Render implements session.Renderer. It never blocks the session loop; a
// full broadcast queue drops the frame, and the next one supersedes it.
func (h *Hub) Render(p projection.Projection) {
	data, err := json.Marshal(wsMessage{Type: "board", Payload: mustMarshal(p)})
	if err != nil {
		h.logger.Printf("feed: marshal projection: %v", err)
		return
	}

	h.mu.Lock()
	h.last = data
	h.mu.Unlock()

	select {
	case h.broadcast <- data:
	default:
	}
}

// Run fans broadcasts out to clients until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.sendRaw(data)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	last := h.last
	h.mu.Unlock()

	if last != nil {
		c.sendRaw(last)
	}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) HasClients() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// handle turns one inbound message into a session event
func (h *Hub) handle(c *Client, msg wsMessage) {
	switch msg.Type {
	case "move":
		var p movePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		h.post(session.UserMoved{From: p.From, To: p.To, Promotion: p.Promotion})
	case "navigate":
		var p navigatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if p.Index != nil {
			h.post(session.Seek{Index: *p.Index})
			return
		}
		if target, ok := parseTarget(p.To); ok {
			h.post(session.Navigate{To: target})
		}
	case "mode":
		var p modePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if mode, ok := core.ParseMode(p.Mode); ok {
			h.post(session.SwitchMode{Mode: mode})
		}
	case "model":
		var p modelPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		if side, ok := core.ParseColor(p.Side); ok {
			h.post(session.SelectModel{Side: side, Model: p.Model})
		}
	case "flip":
		h.post(session.Flip{})
	case "reset":
		h.post(session.Reset{})
	case "pause":
		h.post(session.SetPaused{Paused: true})
	case "resume":
		h.post(session.SetPaused{Paused: false})
	case "retry":
		h.post(session.Retry{})
	case "dismiss":
		h.post(session.DismissNotice{})
	case "request_state":
		h.mu.Lock()
		last := h.last
		h.mu.Unlock()
		if last != nil {
			c.sendRaw(last)
		}
	default:
		h.logger.Printf("feed: unknown message type %q", msg.Type)
	}
}

func parseTarget(s string) (session.Target, bool) {
	switch s {
	case "first":
		return session.TargetFirst, true
	case "previous", "prev":
		return session.TargetPrevious, true
	case "next":
		return session.TargetNext, true
	case "last":
		return session.TargetLast, true
	default:
		return 0, false
	}
}

func (c *Client) sendRaw(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
