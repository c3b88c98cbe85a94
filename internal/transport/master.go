// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/simforge/simserver/internal/core/lifecycle"
	"github.com/simforge/simserver/internal/logging"
)

const masterShutdownTimeout = 5 * time.Second

type (
	// Master serves a Bus to other processes over websocket.
	Master struct {
		lc       *lifecycle.Machine
		bus      *Bus
		logger   *log.Logger
		upgrader websocket.Upgrader

		srv      *http.Server
		listener net.Listener

		peersMu sync.Mutex
		peers   map[*peer]struct{}
	}

	// HealthStatus is served on /health.
	HealthStatus struct {
		State      string   `json:"state"`
		MasterURI  string   `json:"master_uri"`
		Namespaces []string `json:"namespaces"`
	}

	peer struct {
		conn   *websocket.Conn
		bus    *Bus
		logger *log.Logger

		writeMu sync.Mutex
		subs    map[string]*Subscription
	}
)

// NewMaster creates a master endpoint for bus. It listens on bus.MasterURI().
func NewMaster(bus *Bus, logger *log.Logger) *Master {
	m := &Master{
		lc:     lifecycle.New(),
		bus:    bus,
		logger: logging.Sub(logger, "master"),
		peers:  make(map[*peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(busPath, m.handleBus)
	mux.HandleFunc(healthPath, m.handleHealth)
	m.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return m
}

// Start binds the listener and begins serving. It returns once the endpoint
// accepts connections.
func (m *Master) Start(ctx context.Context) error {
	if err := m.lc.Begin(ctx); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", m.bus.MasterURI().Addr())
	if err != nil {
		err = fmt.Errorf("listen on %s: %w", m.bus.MasterURI().Addr(), err)
		m.lc.Fail(err)
		return err
	}
	m.listener = ln

	m.lc.Go(func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("master endpoint failed", "err", err)
			m.lc.Fail(err)
		}
	})

	m.lc.MarkRunning()
	m.logger.Info("master endpoint listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound listener address, useful when the configured port was 0 in tests.
func (m *Master) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// State returns the lifecycle state.
func (m *Master) State() lifecycle.State {
	return m.lc.State()
}

// Stop closes every peer and shuts the HTTP server down. Safe to call more than once.
func (m *Master) Stop() error {
	if !m.lc.RequestStop() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), masterShutdownTimeout)
	defer cancel()
	err := m.srv.Shutdown(ctx)

	m.peersMu.Lock()
	for p := range m.peers {
		_ = p.conn.Close()
	}
	m.peersMu.Unlock()

	m.lc.Wait()
	m.lc.Finish()
	return err
}

func (m *Master) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthStatus{
		State:      m.lc.State().String(),
		MasterURI:  m.bus.MasterURI().String(),
		Namespaces: m.bus.Namespaces(),
	})
}

func (m *Master) handleBus(w http.ResponseWriter, r *http.Request) {
	if m.lc.IsStopping() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	p := &peer{
		conn:   conn,
		bus:    m.bus,
		logger: m.logger.With("remote", r.RemoteAddr),
		subs:   make(map[string]*Subscription),
	}

	m.peersMu.Lock()
	m.peers[p] = struct{}{}
	m.peersMu.Unlock()

	m.lc.Go(func() {
		defer func() {
			m.peersMu.Lock()
			delete(m.peers, p)
			m.peersMu.Unlock()
		}()
		p.serve()
	})
}

func (p *peer) serve() {
	defer p.close()

	for {
		var f frame
		if err := p.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Debug("peer read ended", "err", err)
			}
			return
		}

		switch f.Op {
		case opSubscribe:
			if _, ok := p.subs[f.Topic]; ok {
				continue
			}
			topic := f.Topic
			p.subs[topic] = p.bus.Subscribe(topic, func(data []byte) {
				p.write(frame{Op: opMessage, Topic: topic, Data: data})
			})
		case opUnsubscribe:
			if s, ok := p.subs[f.Topic]; ok {
				s.Unsubscribe()
				delete(p.subs, f.Topic)
			}
		case opPublish:
			p.bus.PublishRaw(f.Topic, f.Data)
		default:
			p.logger.Warn("unknown frame op", "op", f.Op)
		}
	}
}

func (p *peer) write(f frame) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.WriteJSON(f); err != nil {
		p.logger.Debug("peer write failed", "topic", f.Topic, "err", err)
	}
}

func (p *peer) close() {
	for _, s := range p.subs {
		s.Unsubscribe()
	}
	_ = p.conn.Close()
}
