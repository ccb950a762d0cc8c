package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// NewHTTPClient returns the http.Client used for all API traffic. With an
// empty socksAddr it dials directly; otherwise every connection is tunneled
// through the SOCKS5 proxy. The generous timeout covers slow run polling
// round trips.
func NewHTTPClient(socksAddr string) (*http.Client, error) {
	client := &http.Client{Timeout: 120 * time.Second}

	if socksAddr == "" {
		return client, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
	}

	client.Transport = &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		},
	}

	return client, nil
}
