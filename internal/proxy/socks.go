// Package proxy builds the dialer used for outbound reachability checks.
package proxy

import (
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// NewDialer dials through the SOCKS5 proxy at socksAddr, or directly when
// socksAddr is empty.
func NewDialer(socksAddr string) (proxy.ContextDialer, error) {
	direct := &net.Dialer{Timeout: 10 * time.Second}
	if socksAddr == "" {
		return direct, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, direct)
	if err != nil {
		return nil, err
	}
	// SOCKS5 dialers from x/net implement DialContext.
	return dialer.(proxy.ContextDialer), nil
}
