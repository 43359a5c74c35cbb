package httpapi

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/cruxhq/crux/pkg/game"
	"github.com/cruxhq/crux/pkg/protocol"
)

var errConnClosed = errors.New("connection closed")

type outFrame struct {
	msgType int
	payload []byte
}

// wsConn adapts one websocket connection to the session's Conn contract.
// All writes funnel through a single goroutine so frames land on the wire
// in call order; sends block rather than drop, because a dropped frame
// would desynchronize the client's audio pairing.
type wsConn struct {
	conn    *websocket.Conn
	sendCh  chan outFrame
	done    chan struct{}
	errored chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
}

var _ game.Conn = (*wsConn)(nil)

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn:    conn,
		sendCh:  make(chan outFrame, 64),
		done:    make(chan struct{}),
		errored: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *wsConn) loop() {
	defer c.wg.Done()
	for {
		select {
		case f := <-c.sendCh:
			if err := c.conn.WriteMessage(f.msgType, f.payload); err != nil {
				// Unblock every pending and future enqueue; the transport
				// is dead and the session must see the failure.
				close(c.errored)
				return
			}
		case <-c.done:
			// Flush whatever was enqueued before the close.
			for {
				select {
				case f := <-c.sendCh:
					if err := c.conn.WriteMessage(f.msgType, f.payload); err != nil {
						close(c.errored)
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *wsConn) enqueue(f outFrame) error {
	select {
	case <-c.done:
		return errConnClosed
	case <-c.errored:
		return errConnClosed
	case c.sendCh <- f:
		return nil
	}
}

func (c *wsConn) WriteControl(msg protocol.ServerMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.enqueue(outFrame{msgType: websocket.TextMessage, payload: b})
}

func (c *wsConn) WriteAudio(chunk []byte) error {
	return c.enqueue(outFrame{msgType: websocket.BinaryMessage, payload: chunk})
}

func (c *wsConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.wg.Wait()
	return c.conn.Close()
}
