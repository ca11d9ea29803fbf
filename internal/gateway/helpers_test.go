package gateway

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeFrame is one frame written to a fakeConn.
type fakeFrame struct {
	messageType int
	data        []byte
}

// fakeConn is an in-memory Conn recording everything written to it.
type fakeConn struct {
	mu         sync.Mutex
	frames     []fakeFrame
	closed     bool
	failWrites bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.failWrites {
		return websocket.ErrCloseSent
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, fakeFrame{messageType: messageType, data: buf})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) setFailWrites(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = fail
}

// textFrames returns the payloads of all text frames written so far.
func (c *fakeConn) textFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for _, f := range c.frames {
		if f.messageType == websocket.TextMessage {
			out = append(out, f.data)
		}
	}
	return out
}

// pingCount returns how many ping control frames were written.
func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.messageType == websocket.PingMessage {
			n++
		}
	}
	return n
}

// messagesOfType decodes all text frames and returns those with the given type.
func (c *fakeConn) messagesOfType(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, frame := range c.textFrames() {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(frame, &msg))
		if msg["type"] == msgType {
			out = append(out, msg)
		}
	}
	return out
}
