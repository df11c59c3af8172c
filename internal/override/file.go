package override

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// MapSource is a fixed in-memory override source.
type MapSource struct {
	settings map[string]*model.Setting
}

// NewMapSource builds an override source from plain key/value pairs.
// Unsupported value types are dropped.
func NewMapSource(values map[string]any) *MapSource {
	settings, _ := settingsFromValues(values)
	return &MapSource{settings: settings}
}

func (s *MapSource) Settings() map[string]*model.Setting { return s.settings }

func (s *MapSource) Close() error { return nil }

// FileSource reads override settings from a JSON or YAML file and optionally
// watches it for changes.
//
// Two file layouts are accepted: a full config document (with an "f"
// settings block), or a simple flat map under a top-level "flags" key.
type FileSource struct {
	path string
	log  logger.Logger

	mu       sync.RWMutex
	settings map[string]*model.Setting

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileSource loads the file once and, when watch is true, reloads it on
// every change until Close is called. The initial load must succeed; later
// reload failures are logged and keep the previous snapshot.
func NewFileSource(path string, watch bool, log logger.Logger) (*FileSource, error) {
	s := &FileSource{path: path, log: log}
	if err := s.reload(); err != nil {
		return nil, err
	}
	if !watch {
		return s, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating override file watcher: %w", err)
	}
	// Watch the directory rather than the file so atomic replace-by-rename
	// saves keep being observed.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching override file directory: %w", err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watch()
	return s, nil
}

func (s *FileSource) Settings() map[string]*model.Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *FileSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}

func (s *FileSource) watch() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(); err != nil {
				s.log.Errorf("failed to reload override file %s: %v", s.path, err)
			} else {
				s.log.Debugf("override file %s reloaded", s.path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Errorf("override file watcher error: %v", err)
		}
	}
}

func (s *FileSource) reload() error {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading override file: %w", err)
	}
	settings, err := parseOverrideFile(s.path, payload, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// simpleOverrideFile is the flat layout: plain values keyed by flag name.
type simpleOverrideFile struct {
	Flags map[string]any `json:"flags" yaml:"flags"`
}

func parseOverrideFile(path string, payload []byte, log logger.Logger) (map[string]*model.Setting, error) {
	yamlFile := false
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		yamlFile = true
	}

	var simple simpleOverrideFile
	if yamlFile {
		if err := yaml.Unmarshal(payload, &simple); err != nil {
			return nil, fmt.Errorf("parsing override file: %w", err)
		}
	} else {
		if err := json.Unmarshal(payload, &simple); err != nil {
			return nil, fmt.Errorf("parsing override file: %w", err)
		}
	}
	if simple.Flags != nil {
		settings, skipped := settingsFromValues(simple.Flags)
		for _, key := range skipped {
			log.Warnf("override flag %q has an unsupported value type and was ignored", key)
		}
		return settings, nil
	}

	if yamlFile {
		return nil, fmt.Errorf("override file %s has no \"flags\" block", path)
	}

	// Fall back to the full config document layout.
	doc, err := model.ParseConfigDocument(payload)
	if err != nil {
		return nil, fmt.Errorf("parsing override file as a config document: %w", err)
	}
	return doc.Settings, nil
}
