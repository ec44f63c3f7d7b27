package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/0xRadioAc7iv/go-filebacked/core"
	"github.com/0xRadioAc7iv/go-filebacked/internal/protocol"
)

const helpText = `
Available Commands:

PING
  Check if the server is alive.
  Response: PONG!

SET <key> <value>
  Store a value for the given key.
  Overwrites the value if the key already exists.
  Response: ok

GET <key>
  Retrieve the value associated with the key.
  Response: value | nil

DELETE <key>
  Delete the key and its value.
  Response: ok | nil

EXISTS <key>
  Check if a key exists.
  Response: true | false

COUNT
  Return the total number of keys stored.
  Response: integer

LIST
  List all stored keys.
  Response: list of keys | nil

COMPACT
  Rewrite the backing file without dead space.
  Response: ok

STATS
  Describe the backing file.
  Response: records, file bytes, free bytes and free ranges

HELP (cli only)
  Show this help message.

EXIT (cli only)
  Close the client connection.
`

// Handler answers protocol commands from a ConcurrentDictionary.
type Handler struct {
	db     *core.ConcurrentDictionary
	logger *slog.Logger
}

func NewHandler(db *core.ConcurrentDictionary, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

// ServeConn reads commands from conn until the client disconnects or ctx is
// cancelled.
func (h *Handler) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	h.logger.Debug("client connected", "remote", remote)

	for {
		command, err := protocol.DecodeCommand(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				h.logger.Debug("client disconnected", "remote", remote)
			} else {
				h.logger.Warn("dropping client", "remote", remote, "error", err)
			}
			return
		}

		if err := h.reply(conn, h.Handle(command)); err != nil {
			h.logger.Debug("client disconnected", "remote", remote, "error", err)
			return
		}
	}
}

// Handle executes one command.
func (h *Handler) Handle(command *protocol.Command) protocol.Response {
	switch strings.ToLower(command.Cmd) {
	case protocol.CmdPing:
		return protocol.Text("PONG!")
	case protocol.CmdSet:
		return h.handleSet(command.Key, command.Val)
	case protocol.CmdGet:
		return h.handleGet(command.Key)
	case protocol.CmdDelete:
		return h.handleDelete(command.Key)
	case protocol.CmdExists:
		return h.handleExists(command.Key)
	case protocol.CmdCount:
		return protocol.Text("%d", h.db.Size())
	case protocol.CmdList:
		return h.handleList()
	case protocol.CmdCompact:
		return h.handleCompact()
	case protocol.CmdStats:
		st := h.db.Stats()
		return protocol.Text("records=%d file_bytes=%d free_bytes=%d free_ranges=%d",
			st.Records, st.FileSize, st.FreeBytes, st.FreeRanges)
	case protocol.CmdHelp:
		return protocol.Text("%s", strings.TrimSpace(helpText))
	default:
		return protocol.Response{Status: protocol.StatusError, Body: []byte("Invalid Command")}
	}
}

func (h *Handler) handleGet(key string) protocol.Response {
	value, err := h.db.Get(key)
	if errors.Is(err, core.ErrKeyNotFound) {
		return protocol.Nil()
	}
	if err != nil {
		return h.failed("get", err)
	}
	return protocol.OK(value)
}

func (h *Handler) handleSet(key string, value []byte) protocol.Response {
	if err := h.db.Put(key, value); err != nil {
		return h.failed("set", err)
	}
	return protocol.Text("ok")
}

func (h *Handler) handleDelete(key string) protocol.Response {
	removed, err := h.db.Remove(key)
	if err != nil {
		return h.failed("delete", err)
	}
	if !removed {
		return protocol.Nil()
	}
	return protocol.Text("ok")
}

func (h *Handler) handleExists(key string) protocol.Response {
	ok, err := h.db.Contains(key)
	if err != nil {
		return h.failed("exists", err)
	}
	return protocol.Text("%s", strconv.FormatBool(ok))
}

func (h *Handler) handleList() protocol.Response {
	keys := h.db.Keys()
	if len(keys) == 0 {
		return protocol.Nil()
	}
	slices.Sort(keys)
	return protocol.Text("%s", strings.Join(keys, "\n"))
}

func (h *Handler) handleCompact() protocol.Response {
	if err := h.db.Compact(); err != nil {
		return h.failed("compact", err)
	}
	return protocol.Text("ok")
}

// failed logs errors that are not the client's fault.
func (h *Handler) failed(op string, err error) protocol.Response {
	if !errors.Is(err, core.ErrInvalidKey) && !errors.Is(err, core.ErrReadOnly) {
		h.logger.Error("command failed", "command", op, "error", err)
	}
	return protocol.Error(err)
}

func (h *Handler) reply(conn net.Conn, resp protocol.Response) error {
	encoded, err := protocol.EncodeResponse(resp)
	if err != nil {
		h.logger.Error("encoding response", "error", err)
		encoded, _ = protocol.EncodeResponse(protocol.Error(err))
	}

	_, err = conn.Write(encoded)
	return err
}
