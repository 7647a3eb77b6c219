package remotetool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// fileEndpoint mirrors EndpointConfig with a pointer Enabled so an absent
// field defaults to enabled.
type fileEndpoint struct {
	Name           string        `yaml:"name"`
	Transport      string        `yaml:"transport"`
	URL            string        `yaml:"url"`
	AuthToken      string        `yaml:"auth_token"`
	Enabled        *bool         `yaml:"enabled"`
	Priority       int           `yaml:"priority"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffCeiling time.Duration `yaml:"backoff_ceiling"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl"`
}

// endpointsFile is the on-disk shape of the endpoint catalog.
type endpointsFile struct {
	Endpoints []fileEndpoint `yaml:"endpoints"`
}

// LoadEndpoints reads endpoint configs from a YAML file. Endpoints default
// to enabled unless the file says otherwise.
func LoadEndpoints(path string) ([]EndpointConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading endpoints file: %w", err)
	}

	var file endpointsFile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	seen := make(map[string]bool, len(file.Endpoints))
	out := make([]EndpointConfig, 0, len(file.Endpoints))
	for i, fe := range file.Endpoints {
		if fe.Name == "" {
			return nil, fmt.Errorf("%s: endpoint %d has no name", filepath.Base(path), i)
		}
		name := NormalizeName(fe.Name)
		if seen[name] {
			return nil, fmt.Errorf("%s: duplicate endpoint name %q", filepath.Base(path), name)
		}
		seen[name] = true

		enabled := true
		if fe.Enabled != nil {
			enabled = *fe.Enabled
		}
		out = append(out, EndpointConfig{
			Name:           fe.Name,
			Transport:      fe.Transport,
			URL:            fe.URL,
			AuthToken:      fe.AuthToken,
			Enabled:        enabled,
			Priority:       fe.Priority,
			ConnectTimeout: fe.ConnectTimeout,
			RequestTimeout: fe.RequestTimeout,
			MaxReconnects:  fe.MaxReconnects,
			BackoffBase:    fe.BackoffBase,
			BackoffCeiling: fe.BackoffCeiling,
			CatalogTTL:     fe.CatalogTTL,
		})
	}
	return out, nil
}

// WatchEndpoints reloads the manager whenever the endpoints file changes.
// It returns a stop function. Parse errors keep the previous endpoint set.
func WatchEndpoints(path string, m *Manager) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	// Watch the directory so editor rename-and-replace saves are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		var lastReload time.Time
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				// Editors fire bursts of events per save.
				if time.Since(lastReload) < 100*time.Millisecond {
					continue
				}
				lastReload = time.Now()

				cfgs, err := LoadEndpoints(path)
				if err != nil {
					m.debugLog("[remotetool] endpoint reload skipped: %v", err)
					continue
				}
				m.Reload(cfgs)
				m.debugLog("[remotetool] reloaded %d endpoints from %s", len(cfgs), filepath.Base(path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.debugLog("[remotetool] watcher error: %v", err)
			}
		}
	}()
	return watcher.Close, nil
}
