// Package client implements the kvs network client: it opens one
// connection per request, writes an encoded command, and decodes the
// server's single response item, mirroring the server's one-command-per-
// connection protocol.
package client

import (
	"bufio"
	"net"

	"github.com/iamNilotpal/kvs/internal/protocol"
	"github.com/iamNilotpal/kvs/pkg/errors"
)

// Command names, matching internal/server's dispatch.
const (
	cmdSet = "SET"
	cmdGet = "GET"
	cmdRm  = "RM"
)

// Client talks to a kvs server over TCP.
type Client struct {
	addr string
}

// Dial returns a Client configured to connect to addr. No connection is
// opened until the first call, since each call is its own connection.
func Dial(addr string) (*Client, error) {
	return &Client{addr: addr}, nil
}

// Set stores key/value on the server.
func (c *Client) Set(key string, value []byte) error {
	resp, err := c.roundTrip(protocol.Seq{
		protocol.SimpleString(cmdSet),
		protocol.Bulk(key),
		protocol.Bulk(value),
	})
	if err != nil {
		return err
	}

	return asError(resp)
}

// Get retrieves key's value. ok is false if the key does not exist.
func (c *Client) Get(key string) (value []byte, ok bool, err error) {
	resp, err := c.roundTrip(protocol.Seq{
		protocol.SimpleString(cmdGet),
		protocol.Bulk(key),
	})
	if err != nil {
		return nil, false, err
	}

	switch v := resp.(type) {
	case protocol.Null:
		return nil, false, nil
	case protocol.Bulk:
		return []byte(v), true, nil
	case protocol.Err:
		return nil, false, errors.NewStorageError(nil, errors.ErrorCodeIO, string(v))
	default:
		return nil, false, errors.NewCodecError("", 0, nil).WithDetail("reason", "unexpected response item")
	}
}

// Remove deletes key on the server.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.Seq{
		protocol.SimpleString(cmdRm),
		protocol.Bulk(key),
	})
	if err != nil {
		return err
	}

	return asError(resp)
}

// roundTrip dials a fresh connection, writes req, and decodes exactly one
// response item.
func (c *Client) roundTrip(req protocol.Seq) (protocol.Item, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to connect to server").WithPath(c.addr)
	}
	defer conn.Close()

	if _, err := conn.Write(req.Encode()); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to write request").WithPath(c.addr)
	}

	return protocol.Decode(bufio.NewReader(conn))
}

func asError(resp protocol.Item) error {
	if errItem, ok := resp.(protocol.Err); ok {
		return errors.NewStorageError(nil, errors.ErrorCodeIO, string(errItem))
	}
	return nil
}
