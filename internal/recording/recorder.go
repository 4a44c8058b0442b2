// Package recording writes each tab's raw pty output as an asciicast v2 file
// (https://docs.asciinema.org/manual/asciicast/v2/).
package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acolita/hydra-sh/internal/ports"
)

// Header is the first line of a cast file.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is one [elapsed, kind, data] line.
type Event struct {
	Time float64
	Type string
	Data string
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{e.Time, e.Type, e.Data})
}

// Meta describes the recorded tab.
type Meta struct {
	TabID string
	Title string
	Term  string
	Rows  int
	Cols  int
}

// Recorder appends events to one cast file. Events after Close are dropped.
type Recorder struct {
	clock   ports.Clock
	started time.Time

	mu   sync.Mutex
	file ports.FileHandle
	enc  *json.Encoder
	done bool
}

// NewRecorder creates <tab>_<utc stamp>.cast under dir and writes the header.
// An existing file with the same name is never overwritten.
func NewRecorder(dir string, meta Meta, fsys ports.FileSystem, clock ports.Clock) (*Recorder, error) {
	if err := fsys.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}

	now := clock.Now()
	name := fmt.Sprintf("%s_%s.cast", safeName(meta.TabID), now.UTC().Format("20060102_150405"))
	file, err := fsys.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	r := &Recorder{clock: clock, started: now, file: file, enc: json.NewEncoder(file)}
	r.enc.SetEscapeHTML(false)

	h := Header{Version: 2, Width: meta.Cols, Height: meta.Rows, Timestamp: now.Unix(), Title: meta.Title}
	if meta.Term != "" {
		h.Env = map[string]string{"TERM": meta.Term}
	}
	if err := r.enc.Encode(h); err != nil {
		file.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return r, nil
}

// Output appends an "o" event.
func (r *Recorder) Output(data string) error { return r.emit("o", data) }

// Resize appends an "r" event in asciicast's COLSxROWS form.
func (r *Recorder) Resize(rows, cols int) error {
	return r.emit("r", fmt.Sprintf("%dx%d", cols, rows))
}

func (r *Recorder) emit(kind, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	ev := Event{Time: r.clock.Now().Sub(r.started).Seconds(), Type: kind, Data: data}
	if err := r.enc.Encode(ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true
	return r.file.Close()
}

// Path returns the cast file's path.
func (r *Recorder) Path() string { return r.file.Name() }

// safeName keeps client-chosen tab ids inside the recording directory.
func safeName(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c < 128 && (c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "tab"
	}
	return b.String()
}
