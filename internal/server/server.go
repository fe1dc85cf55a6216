// Package server implements the kvs network server: it accepts TCP
// connections, decodes one command per connection using internal/protocol,
// dispatches it to an engine, and writes back the encoded response. Each
// accepted connection is handed to a thread pool so a slow client never
// blocks the accept loop.
package server

import (
	"bufio"
	"context"
	"net"

	"github.com/iamNilotpal/kvs/internal/engine"
	"github.com/iamNilotpal/kvs/internal/protocol"
	"github.com/iamNilotpal/kvs/internal/threadpool"
	"github.com/iamNilotpal/kvs/pkg/errors"
	"go.uber.org/zap"
)

// Command names carried as the first SimpleString item of every request.
const (
	cmdSet = "SET"
	cmdGet = "GET"
	cmdRm  = "RM"
)

// Server dispatches decoded commands from accepted connections to an engine.
type Server struct {
	engine engine.Engine
	pool   threadpool.ThreadPool
	log    *zap.SugaredLogger
}

// Config holds the parameters needed to construct a Server.
type Config struct {
	Engine engine.Engine
	Pool   threadpool.ThreadPool
	Logger *zap.SugaredLogger
}

// New constructs a Server.
func New(config *Config) *Server {
	return &Server{engine: config.Engine, pool: config.Pool, log: config.Logger}
}

// ListenAndServe binds addr and accepts connections until the listener is
// closed or ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to bind server address").WithPath(addr)
	}

	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	s.log.Infow("server listening", "addr", addr)

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.NewStorageError(err, errors.ErrorCodeIO, "failed to accept connection")
			}
		}

		s.pool.Spawn(func() { s.handleConn(ctx, conn) })
	}
}

// handleConn decodes and serves exactly one command per connection before
// closing it, matching the one-shot request/response style of the CLI
// client.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	resp, err := s.dispatch(ctx, reader)
	if err != nil {
		s.log.Errorw("failed to dispatch command", "error", err, "remote", conn.RemoteAddr())
		resp = protocol.Err(err.Error())
	}

	if _, err := conn.Write(resp.Encode()); err != nil {
		s.log.Errorw("failed to write response", "error", err, "remote", conn.RemoteAddr())
	}
}

// dispatch decodes one command from reader and runs it against the engine,
// returning the protocol.Item to send back.
func (s *Server) dispatch(ctx context.Context, reader *bufio.Reader) (protocol.Item, error) {
	nameItem, err := protocol.Decode(reader)
	if err != nil {
		return nil, err
	}

	name, ok := nameItem.(protocol.SimpleString)
	if !ok {
		return nil, errors.NewCodecError("", 0, nil).WithDetail("reason", "expected simple string command name")
	}

	switch string(name) {
	case cmdSet:
		key, value, err := decodeKeyValue(reader)
		if err != nil {
			return nil, err
		}
		if err := s.engine.Set(ctx, key, value); err != nil {
			return nil, err
		}
		return protocol.SimpleString(""), nil

	case cmdGet:
		key, err := decodeKey(reader)
		if err != nil {
			return nil, err
		}
		value, found, err := s.engine.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !found {
			return protocol.Null{}, nil
		}
		return protocol.Bulk(value), nil

	case cmdRm:
		key, err := decodeKey(reader)
		if err != nil {
			return nil, err
		}
		if err := s.engine.Remove(ctx, key); err != nil {
			return nil, err
		}
		return protocol.SimpleString(""), nil

	default:
		return nil, errors.NewCodecError(string(name), 0, nil).WithDetail("reason", "unknown command")
	}
}

func decodeKey(reader *bufio.Reader) (string, error) {
	keyItem, err := protocol.Decode(reader)
	if err != nil {
		return "", err
	}
	key, ok := keyItem.(protocol.Bulk)
	if !ok {
		return "", errors.NewCodecError("", 0, nil).WithDetail("reason", "expected bulk key")
	}
	return string(key), nil
}

func decodeKeyValue(reader *bufio.Reader) (string, []byte, error) {
	key, err := decodeKey(reader)
	if err != nil {
		return "", nil, err
	}

	valueItem, err := protocol.Decode(reader)
	if err != nil {
		return "", nil, err
	}
	value, ok := valueItem.(protocol.Bulk)
	if !ok {
		return "", nil, errors.NewCodecError("", 0, nil).WithDetail("reason", "expected bulk value")
	}

	return key, []byte(value), nil
}
