package wsbridge

import (
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/form"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
)

// ErrConnectionClosed is reported when the builder page goes away.
var ErrConnectionClosed = errors.New("wsbridge: builder page disconnected")

type readyResult struct {
	schema form.Schema
	err    error
}

// pageConn is one browser page connected for a mount.
type pageConn struct {
	mount  builder.MountRef
	ws     *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending chan readyResult
	current *instance
	closed  bool
	done    chan struct{}
}

func newPageConn(mount builder.MountRef, ws *websocket.Conn, logger *zap.Logger) *pageConn {
	return &pageConn{
		mount:  mount,
		ws:     ws,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *pageConn) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wsbridge: encode %s: %w", msg.Type, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("wsbridge: write %s: %w", msg.Type, err)
	}
	return nil
}

func (c *pageConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// beginAttach registers the channel the next ready or error frame resolves.
// Any instance still bound to the page is superseded.
func (c *pageConn) beginAttach(ready chan readyResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	if c.pending != nil {
		c.pending <- readyResult{err: errors.New("superseded by a newer attach")}
	}
	c.pending = ready
	if c.current != nil {
		c.current.markDestroyed()
		c.current = nil
	}
	return nil
}

func (c *pageConn) cancelAttach(ready chan readyResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == ready {
		c.pending = nil
	}
}

func (c *pageConn) bind(inst *instance) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.current = inst
	return true
}

func (c *pageConn) unbind(inst *instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == inst {
		c.current = nil
	}
}

func (c *pageConn) resolve(result readyResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	c.pending <- result
	c.pending = nil
	return true
}

func (c *pageConn) dispatch(msg Message) {
	switch msg.Type {
	case TypeReady:
		if !c.resolve(readyResult{schema: msg.Schema}) {
			c.logger.Debug("ready without pending attach")
		}
	case TypeError:
		cause := errors.New(msg.Error)
		if msg.Error == "" {
			cause = errors.New("builder page reported an error")
		}
		if !c.resolve(readyResult{err: cause}) {
			c.logger.Warn("builder page error", zap.String("error", msg.Error))
		}
	case TypeChange:
		c.mu.Lock()
		inst := c.current
		c.mu.Unlock()
		if inst != nil {
			inst.deliver(msg.Schema)
		}
	default:
		c.logger.Warn("unexpected builder message", zap.String("type", msg.Type))
	}
}

// readLoop runs on the handler goroutine until the page disconnects.
func (c *pageConn) readLoop() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("builder socket read error", zap.Error(err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("malformed builder message", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *pageConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *pageConn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.pending != nil {
		c.pending <- readyResult{err: ErrConnectionClosed}
		c.pending = nil
	}
	if c.current != nil {
		c.current.markDestroyed()
		c.current = nil
	}
	close(c.done)
	c.mu.Unlock()
	_ = c.ws.Close()
}

func (c *pageConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
