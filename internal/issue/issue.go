// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	SceneNotFoundId Id = iota + 1
	SceneParseFailedId
	EngineRejectedId
	ConfigLoadFailedId
	MasterStartFailedId
	PluginLoadFailedId
	PlaybackFailedId
	RecordFailedId
)

type (
	// Id identifies a catalog entry.
	Id int

	// Issue is a markdown guide for one failure kind.
	Issue struct {
		id    Id
		title string
		mdMsg string
	}
)

// Id returns the catalog id.
func (i *Issue) Id() Id { return i.id }

// Title returns the one-line heading.
func (i *Issue) Title() string { return i.title }

// Markdown returns the full guide.
func (i *Issue) Markdown() string {
	return "# " + i.title + "\n" + i.mdMsg
}

// Render renders the guide for a terminal. stylePath is a glamour style name
// ("dark", "light", "notty") or a path to a style file.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	issues = map[Id]*Issue{
		SceneNotFoundId: {
			id:    SceneNotFoundId,
			title: "Scene file not found",
			mdMsg: `
The server could not open the world file it was asked to load.

## Things you can try
- Check the path for typos.
- Relative names are looked up in the current directory and then in every
  directory listed in ` + "`resource_paths`" + ` (or ` + "`SIMSERVER_RESOURCE_PATH`" + `).
- Start with the built-in empty world:
~~~
$ simserver worlds/empty.world
~~~`,
		},
		SceneParseFailedId: {
			id:    SceneParseFailedId,
			title: "Scene file is not valid",
			mdMsg: `
The world file was read but does not match the scene schema.

## Things you can try
- The error names the offending field as a path such as ` + "`worlds[0].physics.type`" + `.
- Every entry needs a ` + "`worlds`" + ` list; each world may carry ` + "`physics`" + `,
  ` + "`models`" + ` and ` + "`presets`" + `.
- YAML files must use the ` + "`.yaml`" + ` or ` + "`.yml`" + ` extension.`,
		},
		EngineRejectedId: {
			id:    EngineRejectedId,
			title: "The physics engine rejected the world",
			mdMsg: `
The scene parsed, but a world could not be loaded into the engine.

## Things you can try
- Use a registered physics type: ode, bullet, dart or simbody.
- ` + "`max_step_size`" + ` must be greater than zero.
- Override the engine from the command line with ` + "`-e <engine>`" + `.`,
		},
		ConfigLoadFailedId: {
			id:    ConfigLoadFailedId,
			title: "Configuration could not be loaded",
			mdMsg: `
The configuration file exists but could not be read or validated.

## Things you can try
- Show the effective configuration:
~~~
$ simserver config show
~~~
- Remove unknown keys; the schema is closed.`,
		},
		MasterStartFailedId: {
			id:    MasterStartFailedId,
			title: "The bus endpoint could not start",
			mdMsg: `
The server could not listen on its master endpoint.

## Things you can try
- Another server may already use the port. Pick another one:
~~~
$ SIMSERVER_MASTER_URI=http://localhost:11346 simserver world.cue
~~~`,
		},
		PluginLoadFailedId: {
			id:    PluginLoadFailedId,
			title: "A server plugin failed to load",
			mdMsg: `
One of the plugins named with ` + "`-s`" + ` is unknown or rejected its arguments.

## Things you can try
- Built-in plugins: ` + "`heartbeat`" + `.
- Check the plugin-specific flags, for example ` + "`--heartbeat-interval=2s`" + `.`,
		},
		PlaybackFailedId: {
			id:    PlaybackFailedId,
			title: "The state log could not be played back",
			mdMsg: `
The file given to ` + "`--play`" + ` is not a readable state log.

## Things you can try
- Point ` + "`--play`" + ` at the ` + "`state.log`" + ` file inside a recording directory.
- Logs cut short by a crash replay up to their last complete entry.`,
		},
		RecordFailedId: {
			id:    RecordFailedId,
			title: "Recording could not start",
			mdMsg: `
The server could not create a state log.

## Things you can try
- Check that ` + "`--record_path`" + ` is writable.
- Valid encodings are zlib, zstd and txt.`,
		},
	}
)

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

// Describe renders err for the terminal: the formatted ActionableError and,
// when it links to a catalog entry, the rendered guide. Other errors are
// returned as their message.
func Describe(err error, verbose bool, stylePath string) string {
	var ae *ActionableError
	if !errors.As(err, &ae) {
		return err.Error()
	}

	var b strings.Builder
	b.WriteString(ae.Format(verbose))
	if entry := Get(ae.Issue); entry != nil {
		if rendered, rerr := entry.Render(stylePath); rerr == nil {
			b.WriteString("\n")
			b.WriteString(rendered)
		}
	}
	return b.String()
}
