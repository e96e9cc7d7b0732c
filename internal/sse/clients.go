// Package sse provides Server-Sent Events client management for live reload.
package sse

import (
	"sync"

	"github.com/debemdeboas/notebook/internal/model"
)

type Client struct {
	Msg chan string
	// Page the client is viewing; empty for pages outside the content
	// set, such as the index.
	PageID model.PageID
}

func NewClient(pageID model.PageID) *Client {
	return &Client{Msg: make(chan string, 1), PageID: pageID}
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clients[client] {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to the clients viewing pageID. Clients that have not
// consumed the previous message are skipped.
func (s *SSEClients) Broadcast(pageID model.PageID, msg string) int {
	return s.send(msg, func(c *Client) bool { return c.PageID == pageID })
}

// BroadcastAll sends msg to every client, e.g. after a layout change
// rewrote every page.
func (s *SSEClients) BroadcastAll(msg string) int {
	return s.send(msg, func(*Client) bool { return true })
}

func (s *SSEClients) send(msg string, match func(*Client) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sent := 0
	for client := range s.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Msg <- msg:
			sent++
		default:
		}
	}
	return sent
}
