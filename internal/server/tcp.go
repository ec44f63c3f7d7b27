// Package server exposes a ConcurrentDictionary over TCP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
)

// Listen opens a TCP listener on host:port. If the port is taken it tries the
// following ones, up to maxPortAttempts in total.
func Listen(host string, port int) (net.Listener, error) {
	const maxPortAttempts = 32

	var lastErr error
	for i := 0; i < maxPortAttempts; i++ {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port+i))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Serve accepts connections on ln and runs handler for each one in its own
// goroutine. When ctx is cancelled the listener is closed and Serve returns
// once every handler has finished.
func Serve(ctx context.Context, ln net.Listener, handler func(conn net.Conn), logger *slog.Logger) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	// When ctx is cancelled, close listener
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logger.Info("listening", "addr", ln.Addr().String())

	// Accept Loop
	for {
		conn, err := ln.Accept()
		if err != nil {
			// When ln.Close() is called, Accept() returns an error.
			// This is how we break out of the loop cleanly.
			select {
			case <-ctx.Done():
				return nil // graceful shutdown
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			logger.Warn("accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			handler(conn)
		}()
	}
}
