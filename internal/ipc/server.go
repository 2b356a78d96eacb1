package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
)

// Serve listens on path until ctx is done. Each connection may carry any
// number of requests; every request gets exactly one response line.
func Serve(ctx context.Context, path string, h Handler) error {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer os.Remove(path)
	log.Info("Control socket ready", "path", path)

	var (
		mu     sync.Mutex
		closed bool
		conns  = make(map[net.Conn]struct{})
		wg     sync.WaitGroup
	)

	go func() {
		<-ctx.Done()
		ln.Close()
		mu.Lock()
		closed = true
		for c := range conns {
			c.Close()
		}
		mu.Unlock()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			log.Warn("Failed to accept", "err", err)
			continue
		}

		mu.Lock()
		if closed {
			mu.Unlock()
			conn.Close()
			break
		}
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(conn, h)
			mu.Lock()
			delete(conns, conn)
			mu.Unlock()
		}()
	}

	wg.Wait()
	return nil
}

func handleConn(conn net.Conn, h Handler) {
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	enc := json.NewEncoder(conn)

	for sc.Scan() {
		var req Request
		var resp Response
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			resp = Fail(fmt.Errorf("bad request: %w", err))
		} else {
			log.Debug("Control request", "cmd", req.Cmd)
			resp = h(req)
		}
		if err := enc.Encode(resp); err != nil {
			log.Debug("Failed to write response", "err", err)
			return
		}
	}
}
