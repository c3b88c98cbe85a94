// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

const clientQueueSize = 64

// ErrClientClosed is returned by operations on a closed Client.
var ErrClientClosed = errors.New("bus client closed")

// Client is a remote connection to a Master.
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	subs   map[string][]chan []byte
	done   chan struct{}
	once   sync.Once
	err    error
	closed bool
}

// Dial connects to the master endpoint at uri.
func Dial(ctx context.Context, uri URI) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri.WebsocketURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", uri, err)
	}

	c := &Client{
		conn: conn,
		subs: make(map[string][]chan []byte),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Publish sends v, encoded as JSON, on topic.
func (c *Client) Publish(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", topic, err)
	}
	return c.send(frame{Op: opPublish, Topic: topic, Data: data})
}

// Subscribe returns a channel receiving raw payloads published on topic.
// Delivery stops once Done is closed; the channel itself is never closed.
func (c *Client) Subscribe(topic string) (<-chan []byte, error) {
	ch := make(chan []byte, clientQueueSize)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	first := len(c.subs[topic]) == 0
	c.subs[topic] = append(c.subs[topic], ch)
	c.mu.Unlock()

	if first {
		if err := c.send(frame{Op: opSubscribe, Topic: topic}); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.shutdown(nil)
	return err
}

func (c *Client) send(f frame) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("send %s frame: %w", f.Op, err)
	}
	return nil
}

func (c *Client) readLoop() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.shutdown(err)
			return
		}
		if f.Op != opMessage {
			continue
		}

		c.mu.Lock()
		subs := c.subs[f.Topic]
		c.mu.Unlock()
		for _, ch := range subs {
			select {
			case ch <- []byte(f.Data):
			case <-c.done:
				return
			}
		}
	}
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			c.err = err
		}
		close(c.done)
		c.mu.Unlock()
	})
}
