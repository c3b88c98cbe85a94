// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/simforge/simserver/internal/logging"
	"github.com/simforge/simserver/internal/msgs"
)

// HeartbeatName is the registry name of the heartbeat plugin.
const HeartbeatName = "heartbeat"

const (
	defaultHeartbeatInterval = time.Second
	intervalFlag             = "heartbeat-interval"
)

// Heartbeat publishes uptime and loaded worlds on msgs.TopicHeartbeat.
// It accepts "--heartbeat-interval=<duration>" or "--heartbeat-interval <duration>"
// among the process arguments.
type Heartbeat struct {
	deps     Deps
	logger   *log.Logger
	interval time.Duration
	started  time.Time

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewHeartbeat is the heartbeat Factory.
func NewHeartbeat(deps Deps) Plugin {
	return &Heartbeat{
		deps:     deps,
		logger:   logging.Sub(deps.Logger, HeartbeatName),
		interval: defaultHeartbeatInterval,
	}
}

// Name implements Plugin.
func (h *Heartbeat) Name() string { return HeartbeatName }

// Load implements Plugin.
func (h *Heartbeat) Load(args []string) error {
	fs := pflag.NewFlagSet(HeartbeatName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	interval := fs.Duration(intervalFlag, defaultHeartbeatInterval, "time between heartbeats")

	// everything except our own flag belongs to the server
	var ours []string
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case strings.HasPrefix(a, "--"+intervalFlag+"="):
			ours = append(ours, a)
		case a == "--"+intervalFlag:
			ours = append(ours, a)
			if i+1 < len(args) {
				ours = append(ours, args[i+1])
				i++
			}
		}
	}
	if err := fs.Parse(ours); err != nil {
		return fmt.Errorf("heartbeat arguments: %w", err)
	}
	if *interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %s", *interval)
	}
	h.interval = *interval
	return nil
}

// Init implements Plugin.
func (h *Heartbeat) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != nil {
		return nil
	}
	h.started = time.Now()
	h.done = make(chan struct{})
	done := h.done

	h.wg.Go(func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		h.beat()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				h.beat()
			}
		}
	})
	return nil
}

// OnShutdown implements ShutdownNotifier.
func (h *Heartbeat) OnShutdown() {
	h.logger.Info("interrupt received, heartbeat stopping")
}

// Fini implements Plugin.
func (h *Heartbeat) Fini() {
	h.mu.Lock()
	if h.done != nil {
		close(h.done)
		h.done = nil
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Heartbeat) beat() {
	if h.deps.Bus == nil {
		return
	}
	var worlds []string
	if h.deps.Worlds != nil {
		worlds = h.deps.Worlds.WorldNames()
	}
	err := h.deps.Bus.Publish(msgs.TopicHeartbeat, msgs.Heartbeat{
		Uptime:  time.Since(h.started),
		Worlds:  worlds,
		Stamp:   time.Now(),
		Version: h.deps.Version,
	})
	if err != nil {
		h.logger.Warn("publish heartbeat failed", "err", err)
	}
}
