// SPDX-License-Identifier: MPL-2.0

package msgs

import (
	"encoding/json"
	"fmt"

	"github.com/simforge/simserver/pkg/types"
)

type (
	// ServerControl is the wire shape of a control request. Callers set only the
	// fields belonging to one command.
	ServerControl struct {
		Clone         *bool   `json:"clone,omitempty"`
		NewPort       *uint32 `json:"new_port,omitempty"`
		SaveWorldName *string `json:"save_world_name,omitempty"`
		SaveFilename  *string `json:"save_filename,omitempty"`
		NewWorld      *bool   `json:"new_world,omitempty"`
		OpenFilename  *string `json:"open_filename,omitempty"`
		Stop          *bool   `json:"stop,omitempty"`
	}

	// Command is one decoded control intent.
	Command interface {
		isCommand()
		// Name is a short label used in logs.
		Name() string
	}

	// CloneCommand copies a world into a new server process listening on Port.
	// Port is zero when the request did not carry one.
	CloneCommand struct {
		World types.WorldName
		Port  types.ListenPort
	}

	// SaveWorldCommand writes a world to Path. Path is empty when the request
	// did not carry a filename.
	SaveWorldCommand struct {
		World types.WorldName
		Path  string
	}

	// NewWorldCommand replaces the loaded worlds with the built-in empty world.
	NewWorldCommand struct{}

	// OpenWorldCommand replaces the loaded worlds with the scene at Path.
	OpenWorldCommand struct {
		Path string
	}

	// StopCommand stops the server.
	StopCommand struct{}
)

func (CloneCommand) isCommand()     {}
func (SaveWorldCommand) isCommand() {}
func (NewWorldCommand) isCommand()  {}
func (OpenWorldCommand) isCommand() {}
func (StopCommand) isCommand()      {}

func (CloneCommand) Name() string     { return "clone" }
func (SaveWorldCommand) Name() string { return "save" }
func (NewWorldCommand) Name() string  { return "new_world" }
func (OpenWorldCommand) Name() string { return "open" }
func (StopCommand) Name() string      { return "stop" }

// Command picks the single intent carried by the request. When several fields
// are set the first match wins in the order clone, save, new world, open, stop.
// A request with no recognised intent returns ok == false.
func (c *ServerControl) Command() (cmd Command, ok bool) {
	switch {
	case isSet(c.Clone):
		cmd := CloneCommand{World: types.WorldName(deref(c.SaveWorldName))}
		if c.NewPort != nil {
			cmd.Port = types.ListenPort(*c.NewPort)
		}
		return cmd, true
	case c.SaveWorldName != nil:
		return SaveWorldCommand{World: types.WorldName(*c.SaveWorldName), Path: deref(c.SaveFilename)}, true
	case isSet(c.NewWorld):
		return NewWorldCommand{}, true
	case c.OpenFilename != nil:
		return OpenWorldCommand{Path: *c.OpenFilename}, true
	case isSet(c.Stop):
		return StopCommand{}, true
	default:
		return nil, false
	}
}

// DecodeControl parses a JSON control request.
func DecodeControl(data []byte) (*ServerControl, error) {
	var c ServerControl
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode server control: %w", err)
	}
	return &c, nil
}

// ControlFor builds the wire request for cmd.
func ControlFor(cmd Command) ServerControl {
	switch c := cmd.(type) {
	case CloneCommand:
		out := ServerControl{Clone: ptr(true), NewPort: ptr(uint32(c.Port))}
		if c.World != "" {
			out.SaveWorldName = ptr(string(c.World))
		}
		return out
	case SaveWorldCommand:
		out := ServerControl{SaveWorldName: ptr(string(c.World))}
		if c.Path != "" {
			out.SaveFilename = ptr(c.Path)
		}
		return out
	case NewWorldCommand:
		return ServerControl{NewWorld: ptr(true)}
	case OpenWorldCommand:
		return ServerControl{OpenFilename: ptr(c.Path)}
	case StopCommand:
		return ServerControl{Stop: ptr(true)}
	default:
		return ServerControl{}
	}
}

func isSet(b *bool) bool { return b != nil && *b }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr[T any](v T) *T { return &v }
