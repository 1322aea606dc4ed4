// Package framelog implements the per-stage append-only frame log.
//
// A log is newline-delimited JSON, one frame per line. Line-oriented
// records make extraction a parse-and-compare over ids instead of a
// substring hunt for bracket markers, so a payload containing marker
// text, or an id that is a prefix of a later id, can never confuse the
// extractor.
package framelog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/alextrx818/matchpipe/internal/app"
	"github.com/alextrx818/matchpipe/internal/domain/frame"
)

// ErrNotFound is returned when no well-formed frame with the requested
// id exists in the log. Callers treat it as "nothing to do this cycle".
var ErrNotFound = errors.New("frame not found")

// maxLineBytes bounds a single frame record. A full fetch snapshot with
// odds histories for every live match stays well under this.
const maxLineBytes = 64 * 1024 * 1024

// Log is one stage's frame log. The owning stage is the only writer.
type Log struct {
	fs   afero.Fs
	path string
}

// New returns a Log at path on fsys. The file is created lazily on the
// first append.
func New(fsys afero.Fs, path string) *Log {
	return &Log{fs: fsys, path: path}
}

// Path returns the log's file path.
func (l *Log) Path() string { return l.path }

// Append writes one frame as a single NDJSON line. The write is
// flushed before returning; if it fails the caller must not mark the
// ledger, so the frame is retried on a later cycle.
func (l *Log) Append(f frame.Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame %s: %w", f.ID, err)
	}

	file, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open frame log %s: %w", l.path, err)
	}
	defer file.Close()

	if _, err := file.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append frame %s to %s: %w", f.ID, l.path, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync frame log %s: %w", l.path, err)
	}
	return nil
}

// Extract returns the payload of the first frame with the given id.
// Malformed lines are skipped with a warning; they never abort the scan.
// A missing log file reads as an empty log.
func (l *Log) Extract(id string) (json.RawMessage, error) {
	var payload json.RawMessage
	found := false
	err := l.scan(func(f frame.Frame) bool {
		if f.ID == id {
			payload = f.Payload
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("extract %s from %s: %w", id, l.path, ErrNotFound)
	}
	return payload, nil
}

// Frames returns every well-formed frame in append order.
func (l *Log) Frames() ([]frame.Frame, error) {
	var frames []frame.Frame
	err := l.scan(func(f frame.Frame) bool {
		frames = append(frames, f)
		return true
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// Count returns the number of well-formed frames currently in the log.
// The rotation manager compares this against its threshold.
func (l *Log) Count() (int, error) {
	n := 0
	err := l.scan(func(frame.Frame) bool {
		n++
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ReadAll returns the raw log content for archival.
func (l *Log) ReadAll() ([]byte, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read frame log %s: %w", l.path, err)
	}
	return data, nil
}

// Clear truncates the log to empty (rotation policy A).
func (l *Log) Clear() error {
	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("truncate frame log %s: %w", l.path, err)
	}
	return f.Close()
}

// scan walks the log line by line, invoking fn for each well-formed
// frame until fn returns false.
func (l *Log) scan(fn func(frame.Frame) bool) error {
	file, err := l.fs.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open frame log %s: %w", l.path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var f frame.Frame
		if err := json.Unmarshal(line, &f); err != nil || f.ID == "" {
			app.GetLogger().Warn("skipping malformed frame at %s:%d", l.path, lineNo)
			continue
		}
		if !fn(f) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan frame log %s: %w", l.path, err)
	}
	return nil
}
