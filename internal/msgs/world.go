// SPDX-License-Identifier: MPL-2.0

package msgs

import (
	"net"
	"time"

	"github.com/simforge/simserver/pkg/types"
)

type (
	// WorldModify reports the outcome of a clone request.
	WorldModify struct {
		WorldName string `json:"world_name"`
		Cloned    bool   `json:"cloned"`
		ClonedURI string `json:"cloned_uri,omitempty"`
	}

	// WorldStats is published by a running world after each step unless the
	// server runs with minimal comms.
	WorldStats struct {
		World      string    `json:"world"`
		Iterations uint64    `json:"iterations"`
		SimTime    float64   `json:"sim_time"`
		Paused     bool      `json:"paused"`
		Stamp      time.Time `json:"stamp"`
	}

	// SensorReading is a single sensor update.
	SensorReading struct {
		World   string    `json:"world"`
		Model   string    `json:"model"`
		Sensor  string    `json:"sensor"`
		Type    string    `json:"type"`
		SimTime float64   `json:"sim_time"`
		Values  []float64 `json:"values"`
	}

	// Heartbeat is published periodically by the heartbeat plugin.
	Heartbeat struct {
		Uptime  time.Duration `json:"uptime"`
		Worlds  []string      `json:"worlds"`
		Stamp   time.Time     `json:"stamp"`
		Version string        `json:"version"`
	}
)

// CloneURI is the master endpoint URI of a clone listening on port.
func CloneURI(host string, port types.ListenPort) string {
	return "http://" + net.JoinHostPort(host, port.String())
}
