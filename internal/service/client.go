package service

import (
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Client wraps one live connection. The write pump is the only writer on the
// socket; everything addressed to this user arrives through outbound.
type Client struct {
	id       int
	conn     *websocket.Conn
	outbound <-chan *redis.Message
}

func NewClient(id int, conn *websocket.Conn) *Client {
	return &Client{
		id:   id,
		conn: conn,
	}
}

func (c *Client) UserID() int {
	return c.id
}
