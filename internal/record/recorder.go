// SPDX-License-Identifier: MPL-2.0

package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/simforge/simserver/internal/logging"
	"github.com/simforge/simserver/pkg/scene"
)

const (
	// LogFileName is the name of the state log inside a recording directory.
	LogFileName = "state.log"

	defaultInterval = time.Second
)

// ErrRecording is returned by Start when a recording is already in progress.
var ErrRecording = errors.New("recording already in progress")

type (
	// SnapshotSource supplies the scene to record.
	SnapshotSource interface {
		Snapshot() *scene.Document
	}

	// Recorder periodically writes scene snapshots to a state log.
	Recorder struct {
		src           SnapshotSource
		logger        *log.Logger
		interval      time.Duration
		serverVersion string
		seed          uint64

		mu      sync.Mutex
		file    *os.File
		stream  io.WriteCloser
		enc     *json.Encoder
		path    string
		entries int
		stopCh  chan struct{}
		doneCh  chan struct{}
	}

	// RecorderOption configures a Recorder.
	RecorderOption func(*Recorder)
)

// WithLogger sets the parent logger.
func WithLogger(l *log.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logging.Sub(l, "record") }
}

// WithInterval sets the time between snapshots.
func WithInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithServerVersion sets the version written to the header.
func WithServerVersion(v string) RecorderOption {
	return func(r *Recorder) { r.serverVersion = v }
}

// WithSeed sets the random seed written to the header.
func WithSeed(seed uint64) RecorderOption {
	return func(r *Recorder) { r.seed = seed }
}

// NewRecorder creates an idle recorder.
func NewRecorder(src SnapshotSource, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		src:           src,
		logger:        logging.Discard(),
		interval:      defaultInterval,
		serverVersion: "dev",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens a new state log under dir, in a directory named after the
// current time, and writes the current scene as the first entry. It returns
// the path of the log file.
func (r *Recorder) Start(encoding, dir string) (string, error) {
	enc, err := ParseEncoding(encoding)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		return "", ErrRecording
	}

	start := time.Now().UTC()
	logDir := filepath.Join(dir, start.Format("2006-01-02T15_04_05.000000"))
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("create recording directory: %w", err)
	}
	path := filepath.Join(logDir, LogFileName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create state log: %w", err)
	}

	header := Header{
		LogVersion:    LogVersion,
		ServerVersion: r.serverVersion,
		Seed:          r.seed,
		Encoding:      enc,
		Start:         start,
	}
	if err := json.NewEncoder(f).Encode(header); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write state log header: %w", err)
	}

	stream, err := enc.newWriter(f)
	if err != nil {
		_ = f.Close()
		return "", err
	}

	r.file, r.stream, r.enc, r.path = f, stream, json.NewEncoder(stream), path
	r.entries = 0
	if err := r.writeLocked(); err != nil {
		r.closeLocked()
		return "", err
	}

	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.loop(r.stopCh, r.doneCh)

	r.logger.Info("recording started", "path", path, "encoding", enc)
	return path, nil
}

// SetSeed sets the random seed written to the header of the next recording.
func (r *Recorder) SetSeed(seed uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seed = seed
}

// IsRunning reports whether a recording is in progress.
func (r *Recorder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// Path returns the path of the current or last state log.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Entries returns the number of entries written to the current or last log.
func (r *Recorder) Entries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

// Stop writes a final snapshot and closes the log. Stopping an idle recorder
// is a no-op. Of several concurrent calls only the first does the work.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.file == nil || r.stopCh == nil {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.stopCh, r.doneCh = nil, nil
	r.mu.Unlock()

	close(stopCh)
	<-doneCh

	r.mu.Lock()
	defer r.mu.Unlock()
	writeErr := r.writeLocked()
	closeErr := r.closeLocked()
	r.logger.Info("recording stopped", "path", r.path, "entries", r.entries)
	return errors.Join(writeErr, closeErr)
}

func (r *Recorder) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if err := r.writeLocked(); err != nil {
				r.logger.Warn("write snapshot failed", "err", err)
			}
			r.mu.Unlock()
		}
	}
}

func (r *Recorder) writeLocked() error {
	data, err := scene.Encode(r.src.Snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.enc.Encode(Entry{Stamp: time.Now().UTC(), Scene: string(data)}); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	r.entries++
	return nil
}

func (r *Recorder) closeLocked() error {
	streamErr := r.stream.Close()
	fileErr := r.file.Close()
	r.file, r.stream, r.enc = nil, nil, nil
	return errors.Join(streamErr, fileErr)
}
