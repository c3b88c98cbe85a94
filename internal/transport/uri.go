// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/simforge/simserver/pkg/types"
)

const (
	// MasterURIEnv names the environment variable holding the master endpoint.
	MasterURIEnv = "SIMSERVER_MASTER_URI"

	// DefaultMasterURI is used when neither configuration nor environment set one.
	DefaultMasterURI = "http://localhost:11345"
)

// URI is a parsed master endpoint.
type URI struct {
	Host string
	Port types.ListenPort
}

// ParseURI parses "http://host:port". The scheme may be omitted.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		u, err = url.Parse("http://" + raw)
		if err != nil {
			return URI{}, fmt.Errorf("parse master uri %q: %w", raw, err)
		}
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return URI{}, fmt.Errorf("master uri %q: %w", raw, err)
	}
	n, err := strconv.Atoi(portStr)
	if err != nil {
		return URI{}, fmt.Errorf("master uri %q: invalid port %q", raw, portStr)
	}
	port := types.ListenPort(n)
	if err := port.Validate(); err != nil {
		return URI{}, fmt.Errorf("master uri %q: %w", raw, err)
	}
	if host == "" {
		host = "localhost"
	}
	return URI{Host: host, Port: port}, nil
}

// URIFromEnv resolves the master endpoint from SIMSERVER_MASTER_URI, then
// fallback, then DefaultMasterURI.
func URIFromEnv(fallback string) (URI, error) {
	if v := os.Getenv(MasterURIEnv); v != "" {
		return ParseURI(v)
	}
	if fallback != "" {
		return ParseURI(fallback)
	}
	return ParseURI(DefaultMasterURI)
}

// String renders the URI as "http://host:port".
func (u URI) String() string {
	return "http://" + u.Addr()
}

// Addr renders "host:port" for net.Listen and websocket dialing.
func (u URI) Addr() string {
	return net.JoinHostPort(u.Host, u.Port.String())
}

// WebsocketURL is the bus endpoint served by Master.
func (u URI) WebsocketURL() string {
	return "ws://" + u.Addr() + busPath
}
