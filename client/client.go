package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/0xRadioAc7iv/go-filebacked/internal"
	"github.com/0xRadioAc7iv/go-filebacked/internal/protocol"
)

// ErrNotFound is returned by Get and Delete when the key does not exist.
var ErrNotFound = errors.New("key not found")

// ServerError is an error reported by the server.
type ServerError struct {
	Command string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: server error: %s", e.Command, e.Message)
}

// Client is a connection to one server. It is safe for concurrent use;
// requests are sent one at a time.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

func Connect(opts ...Option) (*Client, error) {
	cfg := internal.DefaultConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	conn, err := net.DialTimeout("tcp", addr, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn}, nil
}

func (c *Client) Ping() error {
	_, err := c.call(protocol.CmdPing, "", nil)
	return err
}

func (c *Client) Get(key string) ([]byte, error) {
	resp, err := c.call(protocol.CmdGet, key, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == protocol.StatusNil {
		return nil, ErrNotFound
	}
	return resp.Body, nil
}

func (c *Client) Set(key string, value []byte) error {
	_, err := c.call(protocol.CmdSet, key, value)
	return err
}

// Delete removes key and reports whether it existed.
func (c *Client) Delete(key string) (bool, error) {
	resp, err := c.call(protocol.CmdDelete, key, nil)
	if err != nil {
		return false, err
	}
	return resp.Status != protocol.StatusNil, nil
}

func (c *Client) Exists(key string) (bool, error) {
	resp, err := c.call(protocol.CmdExists, key, nil)
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(string(resp.Body))
}

func (c *Client) Count() (int, error) {
	resp, err := c.call(protocol.CmdCount, "", nil)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(resp.Body))
}

// List returns every key, sorted.
func (c *Client) List() ([]string, error) {
	resp, err := c.call(protocol.CmdList, "", nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == protocol.StatusNil {
		return nil, nil
	}
	return strings.Split(string(resp.Body), "\n"), nil
}

func (c *Client) Compact() error {
	_, err := c.call(protocol.CmdCompact, "", nil)
	return err
}

// Stats returns the server's description of its backing file.
func (c *Client) Stats() (string, error) {
	resp, err := c.call(protocol.CmdStats, "", nil)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// Execute sends an arbitrary command and returns the raw response. Error
// responses are returned as-is rather than as a *ServerError.
func (c *Client) Execute(cmd, key string, value []byte) (protocol.Response, error) {
	return c.sendCommand(cmd, key, value)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(cmd, key string, value []byte) (protocol.Response, error) {
	resp, err := c.sendCommand(cmd, key, value)
	if err != nil {
		return protocol.Response{}, err
	}
	if resp.Status == protocol.StatusError {
		return protocol.Response{}, &ServerError{Command: cmd, Message: string(resp.Body)}
	}
	return resp, nil
}

func (c *Client) sendCommand(cmd, key string, value []byte) (protocol.Response, error) {
	payload, err := protocol.EncodeCommand(cmd, key, value)
	if err != nil {
		return protocol.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.conn.Write(payload)
	if err != nil {
		return protocol.Response{}, err
	}

	return protocol.DecodeResponse(c.conn)
}
