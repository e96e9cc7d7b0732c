package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcast(t *testing.T) {
	clients := NewSSEClients()
	alpha := NewClient("alpha")
	beta := NewClient("beta")
	index := NewClient("")
	clients.Add(alpha)
	clients.Add(beta)
	clients.Add(index)
	assert.Equal(t, 3, clients.Len())

	assert.Equal(t, 1, clients.Broadcast("alpha", "reload"))
	assert.Equal(t, "reload", <-alpha.Msg)
	assert.Empty(t, beta.Msg)

	assert.Equal(t, 3, clients.BroadcastAll("reload"))
	assert.Equal(t, 0, clients.BroadcastAll("reload"), "full buffers are skipped")
}

func TestDeleteClosesOnce(t *testing.T) {
	clients := NewSSEClients()
	c := NewClient("alpha")
	clients.Add(c)

	clients.Delete(c)
	assert.NotPanics(t, func() { clients.Delete(c) })
	assert.Equal(t, 0, clients.Len())

	_, open := <-c.Msg
	assert.False(t, open)
	assert.Equal(t, 0, clients.Broadcast("alpha", "reload"))
}
