// Package ingest turns new audio objects into transcription requests.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/logging"
)

// Handler processes one audio payload. Errors are logged, never retried here.
type Handler func(ctx context.Context, payload models.AudioPayload) error

// Source delivers audio payloads to a Handler until its context ends.
type Source interface {
	Run(ctx context.Context, handle Handler) error
	Close() error
}

const (
	DefaultSettleDelay   = 500 * time.Millisecond
	defaultMaxConcurrent = 2
)

var audioExtensions = map[string]bool{
	".wav": true,
	".pcm": true,
	".raw": true,
}

// IsAudioFile reports whether name carries a supported audio extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// DirWatcher watches a directory and hands every new audio file to the handler.
type DirWatcher struct {
	dir           string
	settleDelay   time.Duration
	maxConcurrent int

	watcher *fsnotify.Watcher
	log     zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

// NewDirWatcher creates the directory if needed and starts watching it.
func NewDirWatcher(dir string, maxConcurrent int, settleDelay time.Duration) (*DirWatcher, error) {
	if dir == "" {
		return nil, errors.New("ingest: watch directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if settleDelay < 0 {
		settleDelay = DefaultSettleDelay
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &DirWatcher{
		dir:           dir,
		settleDelay:   settleDelay,
		maxConcurrent: maxConcurrent,
		watcher:       w,
		log:           logging.WithComponent("dir-watcher"),
		inFlight:      make(map[string]bool),
	}, nil
}

// Run blocks until ctx is done or the watcher is closed, then waits for
// in-flight handlers to return.
func (d *DirWatcher) Run(ctx context.Context, handle Handler) error {
	sem := make(chan struct{}, d.maxConcurrent)
	defer d.wg.Wait()

	d.log.Info().Str("dir", d.dir).Int("maxConcurrent", d.maxConcurrent).Msg("Watching for audio files")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !IsAudioFile(event.Name) {
				continue
			}
			if !d.claim(event.Name) {
				continue
			}

			d.wg.Add(1)
			go func(path string) {
				defer d.wg.Done()
				defer d.release(path)

				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-sem }()

				d.process(ctx, path, handle)
			}(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (d *DirWatcher) process(ctx context.Context, path string, handle Handler) {
	// Give the writer time to finish copying the file.
	if d.settleDelay > 0 {
		select {
		case <-time.After(d.settleDelay):
		case <-ctx.Done():
			return
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		d.log.Error().Err(err).Str("path", path).Msg("Failed to read audio file")
		return
	}

	payload := models.AudioPayload{Name: filepath.Base(path), Data: data}
	if err := handle(ctx, payload); err != nil {
		d.log.Error().Err(err).Str("audioFile", payload.Name).Msg("Audio file processing failed")
	}
}

// claim prevents duplicate Create events for one path from running twice concurrently.
func (d *DirWatcher) claim(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[path] {
		return false
	}
	d.inFlight[path] = true
	return true
}

func (d *DirWatcher) release(path string) {
	d.mu.Lock()
	delete(d.inFlight, path)
	d.mu.Unlock()
}

// Close stops the underlying watcher.
func (d *DirWatcher) Close() error {
	return d.watcher.Close()
}
