package importer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"toymanifest/impl/metrics"
	"toymanifest/impl/schema"
	"toymanifest/impl/store"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// maxManifestBytes is the largest manifest file that will be read
const maxManifestBytes = 4 * 1024 * 1024

const rejectedSuffix = ".rejected"

var waitFor = 100 * time.Millisecond

// Importer creates a file system notifier, watching for manifest files to appear in
// the passed 'importPath' directory, and imports each into the passed store. It blocks
// until the context is cancelled and any import already under way has finished.
//
// This function uses the Go fsnotify library which can emanate many messages during
// creation of a single file. The approach implemented in the code to address that uses
// time-based event deduplication based on:
//
// https://github.com/fsnotify/fsnotify/blob/main/cmd/fsnotify/dedup.go
//
// Even so there can still be more than one event for a file. The last thing the import
// does is remove (or rename) the incoming file, so a later event for a file that no
// longer exists is ignored as a dup.
func Importer(ctx context.Context, importPath string, st store.Store) error {
	if fi, err := os.Stat(importPath); err != nil {
		if err := os.MkdirAll(importPath, 0755); err != nil {
			return err
		}
	} else if !fi.Mode().IsDir() {
		return errors.New("path exists and is not a directory: " + importPath)
	}
	log.Debug("initializing watcher for " + importPath)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file system watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(importPath); err != nil {
		return fmt.Errorf("unable to watch %s: %w", importPath, err)
	}

	// files dropped before the watcher started
	if entries, err := os.ReadDir(importPath); err != nil {
		log.Errorf("error reading %s: %s", importPath, err)
	} else {
		for _, entry := range entries {
			if file := filepath.Join(importPath, entry.Name()); isManifestFile(file) {
				handleFile(ctx, file, st)
			}
		}
	}

	// imports in flight when the context is cancelled finish before Importer returns,
	// and timers that fire after that do nothing
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		stopping bool
	)
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		stopping = true
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug("terminating watcher")
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher error: %s", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isManifestFile(event.Name) {
				log.Debugf("ignoring %s", event.Name)
				continue
			}
			name := event.Name
			mu.Lock()
			t, ok := timers[name]
			if !ok {
				// no timer yet, so create one
				t = time.AfterFunc(math.MaxInt64, func() {
					mu.Lock()
					delete(timers, name)
					if stopping {
						mu.Unlock()
						return
					}
					wg.Add(1)
					mu.Unlock()
					defer wg.Done()
					handleFile(ctx, name, st)
				})
				t.Stop()
				timers[name] = t
			}
			mu.Unlock()
			t.Reset(waitFor)
		}
	}
}

// isManifestFile returns true for regular '.json' files
func isManifestFile(path string) bool {
	if !strings.HasSuffix(path, ".json") {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// handleFile imports the passed file, then removes it. A file that fails validation
// is renamed with a '.rejected' suffix so that it is not picked up again. If the file
// doesn't exist the function assumes it was a dup event and just ignores it.
func handleFile(ctx context.Context, path string, st store.Store) {
	if _, err := os.Stat(path); err != nil {
		log.Debug("file not found (already processed): " + path)
		return
	}
	cfgDigest, err := ImportFile(ctx, path, st)
	var ve *schema.ValidationError
	switch {
	case err == nil:
		log.Infof("imported manifest %s from %s", cfgDigest, path)
		if err := os.Remove(path); err != nil {
			log.Errorf("error attempting to remove file %s. Error: %s", path, err)
		}
	case errors.As(err, &ve):
		log.Warnf("rejected manifest file %s: %s", path, err)
		if err := os.Rename(path, path+rejectedSuffix); err != nil {
			log.Errorf("error attempting to rename file %s. Error: %s", path, err)
		}
	default:
		// storage failures leave the file in place for a retry on the next write
		log.Errorf("error importing manifest file %s. Error: %s", path, err)
	}
}

// ImportFile decodes, validates and stores the manifest in the passed file. It returns
// the config digest of the stored manifest.
func ImportFile(ctx context.Context, path string, st store.Store) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.Size() > maxManifestBytes {
		return "", &schema.ValidationError{Message: fmt.Sprintf("manifest file %s exceeds %d bytes", path, maxManifestBytes)}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc, err := schema.Decode(b)
	if err != nil {
		metrics.IncValidationFailures()
		return "", err
	}
	m, err := schema.Validate(doc)
	if err != nil {
		metrics.IncValidationFailures()
		return "", err
	}
	if _, err := st.Insert(ctx, m); err != nil {
		return "", err
	}
	metrics.IncManifestPosts()
	return string(m.Config.Digest), nil
}

// ImportDir imports every '.json' file in the passed directory, or the passed file if
// it is not a directory, and returns the number of manifests stored. The files are
// left in place. A failing file does not stop the others.
func ImportDir(ctx context.Context, path string, st store.Store) (int, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !fi.IsDir() {
		if _, err := ImportFile(ctx, path, st); err != nil {
			return 0, err
		}
		return 1, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	var errs []error
	cnt := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return cnt, ctx.Err()
		}
		file := filepath.Join(path, entry.Name())
		if !isManifestFile(file) {
			continue
		}
		if _, err := ImportFile(ctx, file, st); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}
		cnt++
	}
	return cnt, errors.Join(errs...)
}
