package watcher

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DirWatcher reports content changes of files with given extensions inside a directory.
// Events for a file are coalesced over the debounce window and only fire when the
// file's content hash actually changed.
type DirWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	exts     map[string]bool
	debounce time.Duration
	callback func(path string)
	log      zerolog.Logger

	mu     sync.Mutex
	hashes map[string]string
	timers map[string]*time.Timer
	done   chan struct{}
}

// New watches dir for files ending in one of exts (e.g. ".html")
func New(dir string, exts []string, debounce time.Duration, callback func(path string), logger zerolog.Logger) (*DirWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dw := &DirWatcher{
		watcher:  fw,
		dir:      dir,
		exts:     make(map[string]bool, len(exts)),
		debounce: debounce,
		callback: callback,
		log:      logger.With().Str("component", "watcher").Logger(),
		hashes:   make(map[string]string),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, ext := range exts {
		dw.exts[strings.ToLower(ext)] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !dw.matches(path) {
			continue
		}
		hash, err := fileHash(path)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to get initial hash: %w", err)
		}
		dw.hashes[path] = hash
	}

	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return dw, nil
}

// Start begins processing events in the background
func (dw *DirWatcher) Start() {
	go dw.loop()
}

func (dw *DirWatcher) loop() {
	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !dw.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			dw.schedule(event.Name)

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.log.Warn().Err(err).Msg("Watcher error")

		case <-dw.done:
			return
		}
	}
}

func (dw *DirWatcher) schedule(path string) {
	if dw.debounce == 0 {
		go dw.handleChange(path)
		return
	}

	dw.mu.Lock()
	defer dw.mu.Unlock()
	if timer, ok := dw.timers[path]; ok {
		timer.Stop()
	}
	dw.timers[path] = time.AfterFunc(dw.debounce, func() {
		dw.mu.Lock()
		delete(dw.timers, path)
		dw.mu.Unlock()
		if dw.closed() {
			return
		}
		dw.handleChange(path)
	})
}

func (dw *DirWatcher) closed() bool {
	select {
	case <-dw.done:
		return true
	default:
		return false
	}
}

// handleChange fires the callback when the file content differs from the last seen hash
func (dw *DirWatcher) handleChange(path string) {
	if dw.closed() {
		return
	}
	hash, err := fileHash(path)
	if err != nil {
		// editors replace files by rename; the follow-up create event will be handled
		dw.log.Debug().Err(err).Str("path", path).Msg("Skipping unreadable file")
		return
	}

	dw.mu.Lock()
	changed := dw.hashes[path] != hash
	dw.hashes[path] = hash
	dw.mu.Unlock()

	if changed {
		dw.callback(path)
	}
}

func (dw *DirWatcher) matches(path string) bool {
	if len(dw.exts) == 0 {
		return true
	}
	return dw.exts[strings.ToLower(filepath.Ext(path))]
}

// Close stops the watcher and pending debounce timers
func (dw *DirWatcher) Close() error {
	dw.mu.Lock()
	for path, timer := range dw.timers {
		timer.Stop()
		delete(dw.timers, path)
	}
	dw.mu.Unlock()

	select {
	case <-dw.done:
	default:
		close(dw.done)
	}
	return dw.watcher.Close()
}

// fileHash calculates the SHA-256 of a file's content
func fileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
