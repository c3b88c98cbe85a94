// SPDX-License-Identifier: MPL-2.0

package record

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Player replays a state log.
type Player struct {
	path    string
	header  Header
	entries []Entry
	next    int
}

// Open reads the state log at path.
func Open(path string) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state log: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read state log header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("decode state log header: %w", err)
	}
	if h.LogVersion == "" {
		return nil, fmt.Errorf("state log %s: missing log version", path)
	}

	stream, err := h.Encoding.newReader(br)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var entries []Entry
	dec := json.NewDecoder(stream)
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if len(entries) == 0 {
				return nil, fmt.Errorf("decode state log entry: %w", err)
			}
			// a log cut short by a crash still replays up to the last full entry
			break
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("state log %s has no entries", path)
	}

	return &Player{path: path, header: h, entries: entries}, nil
}

// Header returns the log header.
func (p *Player) Header() Header { return p.header }

// LogVersion returns the format version of the log.
func (p *Player) LogVersion() string { return p.header.LogVersion }

// ServerVersion returns the version of the server that wrote the log.
func (p *Player) ServerVersion() string { return p.header.ServerVersion }

// RandSeed returns the random seed recorded in the header.
func (p *Player) RandSeed() uint64 { return p.header.Seed }

// Start returns the time recording started.
func (p *Player) Start() time.Time { return p.header.Start }

// End returns the stamp of the last entry.
func (p *Player) End() time.Time { return p.entries[len(p.entries)-1].Stamp }

// Len returns the number of entries.
func (p *Player) Len() int { return len(p.entries) }

// Step returns the next scene document in CUE form, or io.EOF after the last one.
func (p *Player) Step() (string, error) {
	if p.next >= len(p.entries) {
		return "", io.EOF
	}
	e := p.entries[p.next]
	p.next++
	return e.Scene, nil
}

// Rewind moves playback back to the first entry.
func (p *Player) Rewind() { p.next = 0 }
