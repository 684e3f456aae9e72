// Package config loads settings from a file and the environment and keeps
// them current while the file changes.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dormoron/gimme/internal/errs"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Provider is a read/write view over layered configuration.
type Provider interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	Set(key string, value any)
	Has(key string) bool
	AllSettings() map[string]any

	// AddChangeListener registers listener to be called after the file
	// has been reloaded, with key "", or after Set, with the key set.
	AddChangeListener(listener func(key string))
	RemoveChangeListener(listener func(key string))

	// Unmarshal decodes the value at key into v using `config` struct tags.
	// An empty key decodes everything.
	Unmarshal(key string, v any) error
}

var _ Provider = &Configuration{}

// Configuration layers environment variables over a config file.
type Configuration struct {
	data map[string]any

	envPrefix  string
	configFile string
	fileFormat string

	watcher   *fsnotify.Watcher
	listeners []func(string)
	logger    *slog.Logger

	mu sync.RWMutex
}

type Option func(*Configuration)

// WithEnvPrefix makes variables named prefix+KEY visible as key. A double
// underscore separates levels, so GIMME_SINK__STORE_SIZE sets
// sink.store_size.
func WithEnvPrefix(prefix string) Option {
	return func(c *Configuration) {
		c.envPrefix = prefix
	}
}

// WithConfigFile sets the file to load and watch. Its format is taken from
// the extension.
func WithConfigFile(file string) Option {
	return func(c *Configuration) {
		c.configFile = filepath.Clean(file)
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml":
			c.fileFormat = "yaml"
		case ".json":
			c.fileFormat = "json"
		case ".toml":
			c.fileFormat = "toml"
		default:
			c.fileFormat = "unknown"
		}
	}
}

// WithFormat overrides the format detected by WithConfigFile.
func WithFormat(format string) Option {
	return func(c *Configuration) {
		c.fileFormat = format
	}
}

// WithLogger sets where watch errors are reported.
func WithLogger(l *slog.Logger) Option {
	return func(c *Configuration) {
		if l != nil {
			c.logger = l
		}
	}
}

// New loads the configuration and, when a file is set, starts watching it.
// A file that does not exist is not an error.
func New(options ...Option) (*Configuration, error) {
	c := &Configuration{
		data:   make(map[string]any),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(c)
	}

	if err := c.Load(); err != nil {
		return nil, err
	}

	if c.configFile != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("config: create watcher: %w", err)
		}
		if err := watcher.Add(filepath.Dir(c.configFile)); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("config: watch %s: %w", c.configFile, err)
		}
		c.watcher = watcher
		go c.watchConfigFile()
	}
	return c, nil
}

// Load rebuilds the configuration from the file and the environment.
// Environment variables take precedence over the file.
func (c *Configuration) Load() error {
	data := make(map[string]any)
	if c.configFile != "" {
		fileData, err := c.readConfigFile()
		if err != nil {
			return err
		}
		mergeConfig(data, fileData)
	}
	c.loadEnvironmentVariables(data)

	c.mu.Lock()
	c.data = data
	c.mu.Unlock()
	return nil
}

func (c *Configuration) readConfigFile() (map[string]any, error) {
	raw, err := os.ReadFile(c.configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", c.configFile, err)
	}

	var parsed map[string]any
	switch c.fileFormat {
	case "yaml":
		err = yaml.Unmarshal(raw, &parsed)
	case "json":
		err = json.Unmarshal(raw, &parsed)
	case "toml":
		err = toml.Unmarshal(raw, &parsed)
	default:
		return nil, errs.ErrConfigFormat(c.fileFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", c.configFile, err)
	}
	return parsed, nil
}

// mergeConfig copies src into dst, descending into nested maps.
func mergeConfig(dst, src map[string]any) {
	for k, v := range src {
		k = strings.ToLower(k)
		if nested, ok := v.(map[string]any); ok {
			existing, ok := dst[k].(map[string]any)
			if !ok {
				existing = make(map[string]any)
				dst[k] = existing
			}
			mergeConfig(existing, nested)
			continue
		}
		dst[k] = v
	}
}

func (c *Configuration) loadEnvironmentVariables(data map[string]any) {
	if c.envPrefix == "" {
		return
	}
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, c.envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, c.envPrefix))
		if key == "" {
			continue
		}
		setPath(data, strings.Split(key, "__"), value)
	}
}

// setPath stores value under the nested path, replacing any non-map value
// found on the way.
func setPath(data map[string]any, path []string, value any) {
	current := data
	for _, part := range path[:len(path)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

func (c *Configuration) watchConfigFile() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != c.configFile {
				continue
			}
			if err := c.Load(); err != nil {
				c.logger.Error("config reload failed", "file", c.configFile, "error", err)
				continue
			}
			c.logger.Info("config reloaded", "file", c.configFile)
			c.notifyListeners("")

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("config watch error", "file", c.configFile, "error", err)
		}
	}
}

func (c *Configuration) notifyListeners(key string) {
	c.mu.RLock()
	listeners := make([]func(string), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, listener := range listeners {
		listener(key)
	}
}

// Get looks key up as a dotted path through nested maps.
func (c *Configuration) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lookup(c.data, strings.ToLower(key))
}

func lookup(data map[string]any, key string) (any, bool) {
	if key == "" {
		return data, true
	}
	current := data
	parts := strings.Split(key, ".")
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if current, ok = v.(map[string]any); !ok {
			return nil, false
		}
	}
	return nil, false
}

func (c *Configuration) GetString(key string) string {
	value, ok := c.Get(key)
	if !ok {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", value)
}

func (c *Configuration) GetInt(key string) int {
	value, ok := c.Get(key)
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return 0
}

func (c *Configuration) GetBool(key string) bool {
	value, ok := c.Get(key)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

// GetDuration accepts duration strings such as "5s". Bare numbers are
// seconds.
func (c *Configuration) GetDuration(key string) time.Duration {
	value, ok := c.Get(key)
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}

// Set stores value under the dotted key until the next reload.
func (c *Configuration) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	setPath(c.data, strings.Split(strings.ToLower(key), "."), value)
	go c.notifyListeners(key)
}

func (c *Configuration) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// AllSettings returns a copy of the top level of the configuration.
func (c *Configuration) AllSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]any, len(c.data))
	for k, v := range c.data {
		result[k] = v
	}
	return result
}

func (c *Configuration) AddChangeListener(listener func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

func (c *Configuration) RemoveChangeListener(listener func(key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := reflect.ValueOf(listener).Pointer()
	for i, l := range c.listeners {
		if reflect.ValueOf(l).Pointer() == target {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			break
		}
	}
}

func (c *Configuration) Unmarshal(key string, v any) error {
	value, ok := c.Get(key)
	if !ok {
		return errs.ErrConfigKeyMissing(key)
	}

	// Held for the decode since value may share maps with c.data.
	c.mu.RLock()
	defer c.mu.RUnlock()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("config: create decoder: %w", err)
	}
	return decoder.Decode(value)
}

// Close stops watching the config file.
func (c *Configuration) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
