// SPDX-License-Identifier: MPL-2.0

package msgs

import "github.com/simforge/simserver/pkg/types"

const (
	// TopicServerControl carries ServerControl requests to a running server.
	TopicServerControl = "/sim/server/control"
	// TopicWorldModify carries WorldModify notifications.
	TopicWorldModify = "/sim/world/modify"
	// TopicHeartbeat carries Heartbeat messages from the heartbeat plugin.
	TopicHeartbeat = "/sim/server/heartbeat"

	namespacePrefix = "/sim/"
)

// WorldNamespace is the namespace a world advertises once it is loaded.
func WorldNamespace(world types.WorldName) string {
	return namespacePrefix + string(world)
}

// WorldStatsTopic is the topic a world publishes its per-step statistics on.
func WorldStatsTopic(world types.WorldName) string {
	return WorldNamespace(world) + "/world_stats"
}

// SensorTopic is the topic a sensor publishes readings on.
func SensorTopic(world types.WorldName, model, sensor string) string {
	return WorldNamespace(world) + "/" + model + "/" + sensor
}
