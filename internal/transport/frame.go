// SPDX-License-Identifier: MPL-2.0

package transport

import "encoding/json"

const (
	busPath    = "/bus"
	healthPath = "/health"

	opSubscribe   = "sub"
	opUnsubscribe = "unsub"
	opPublish     = "pub"
	opMessage     = "msg"
)

// frame is the websocket envelope between Master and Client.
type frame struct {
	Op    string          `json:"op"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data,omitempty"`
}
