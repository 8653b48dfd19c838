package websocket

import (
	"testing"

	"mealtrail-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAfterCloseReturnsError(t *testing.T) {
	c := NewClient("u1", nil, nil)
	c.Close()
	c.Close() // idempotent

	err := c.Send(models.Event{Type: models.EventTypeLocation})
	require.ErrorIs(t, err, errSinkClosed)
}

func TestPongReplyAfterCloseDoesNotPanic(t *testing.T) {
	c := NewClient("u1", nil, nil)
	c.Close()
	assert.ErrorIs(t, c.enqueue([]byte(`{"type":"pong"}`)), errSinkClosed)
}

func TestSendFullBufferErrors(t *testing.T) {
	c := NewClient("u1", nil, nil)
	for i := 0; i < cap(c.send); i++ {
		require.NoError(t, c.Send(models.Event{Type: models.EventTypeLocation}))
	}
	assert.ErrorIs(t, c.Send(models.Event{Type: models.EventTypeLocation}), errSendBufferFull)
}

func TestConcurrentEnqueueAndClose(t *testing.T) {
	// Pong replies from the read loop race the broadcaster dropping a slow
	// sink. Whichever wins, nobody may panic on the shared channel.
	for i := 0; i < 100; i++ {
		c := NewClient("u1", nil, nil)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 10; j++ {
				c.enqueue([]byte("x"))
			}
		}()
		c.Close()
		<-done
	}
}
