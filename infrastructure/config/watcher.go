package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ConfigWatcher watches the dynamic configuration file for changes
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *DynamicConfig
	mu       sync.RWMutex
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// DynamicConfig represents runtime-changeable configuration
type DynamicConfig struct {
	Limits      DynamicLimits      `yaml:"limits"`
	Placement   DynamicPlacement   `yaml:"placement"`
	Persistence DynamicPersistence `yaml:"persistence"`
	Metadata    ConfigMetadata     `yaml:"metadata"`
}

// DynamicLimits holds canvas size limits
type DynamicLimits struct {
	MaxNodesPerCanvas int `yaml:"maxNodesPerCanvas"`
	MaxEdgesPerCanvas int `yaml:"maxEdgesPerCanvas"`
}

// DynamicPlacement holds overlap-avoidance tuning
type DynamicPlacement struct {
	Margin   float64 `yaml:"margin"`
	RingStep float64 `yaml:"ringStep"`
	MaxRings int     `yaml:"maxRings"`
}

// DynamicPersistence holds save cadence tuning
type DynamicPersistence struct {
	SnapshotDebounceMs int `yaml:"snapshotDebounceMs"`
	ViewportDebounceMs int `yaml:"viewportDebounceMs"`
	PollIntervalMs     int `yaml:"pollIntervalMs"`
}

// ConfigMetadata holds metadata about the configuration
type ConfigMetadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt"`
	UpdatedBy string    `yaml:"updatedBy"`
}

// NewConfigWatcher creates a new configuration watcher
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	// Load initial configuration
	config, err := loadConfigFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	// Create file watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Add the config file to watcher
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	// Also watch the directory for atomic saves (rename operations)
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		logger.Warn("Failed to watch config directory", zap.Error(err))
	}

	cw := &ConfigWatcher{
		path:     configPath,
		watcher:  watcher,
		current:  config,
		onChange: make([]func(*DynamicConfig), 0),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	return cw, nil
}

// Start begins watching for configuration changes
func (w *ConfigWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *ConfigWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.logger.Info("Configuration watcher stopped")
}

// watchLoop is the main loop that watches for file changes
func (w *ConfigWatcher) watchLoop() {
	// Debounce timer to avoid multiple reloads
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only handle write and create events for our config file
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// Reset debounce timer
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					w.handleConfigChange()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

// handleConfigChange handles configuration file changes
func (w *ConfigWatcher) handleConfigChange() {
	w.logger.Info("Configuration file changed, reloading", zap.String("path", w.path))

	// Load new configuration
	newConfig, err := loadConfigFromFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration", zap.Error(err))
		return
	}

	// Validate configuration
	if err := validateDynamicConfig(newConfig); err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	// Store old config for comparison
	w.mu.Lock()
	oldConfig := w.current
	w.current = newConfig
	w.mu.Unlock()

	// Log changes
	w.logConfigChanges(oldConfig, newConfig)

	// Notify listeners
	for _, handler := range w.onChange {
		go handler(newConfig)
	}

	w.logger.Info("Configuration reloaded successfully",
		zap.String("version", newConfig.Metadata.Version),
	)
}

// validateDynamicConfig validates the configuration
func validateDynamicConfig(config *DynamicConfig) error {
	if config.Limits.MaxNodesPerCanvas <= 0 {
		return fmt.Errorf("maxNodesPerCanvas must be positive")
	}

	if config.Limits.MaxEdgesPerCanvas <= 0 {
		return fmt.Errorf("maxEdgesPerCanvas must be positive")
	}

	if config.Placement.Margin < 0 {
		return fmt.Errorf("placement margin cannot be negative")
	}

	if config.Placement.RingStep <= 0 {
		return fmt.Errorf("placement ringStep must be positive")
	}

	if config.Placement.MaxRings <= 0 || config.Placement.MaxRings > 100 {
		return fmt.Errorf("placement maxRings must be between 1 and 100")
	}

	if config.Persistence.SnapshotDebounceMs < 0 || config.Persistence.ViewportDebounceMs < 0 {
		return fmt.Errorf("debounce intervals cannot be negative")
	}

	if config.Persistence.PollIntervalMs < 500 {
		return fmt.Errorf("pollIntervalMs must be at least 500")
	}

	return nil
}

// logConfigChanges logs the differences between old and new config
func (w *ConfigWatcher) logConfigChanges(oldConfig, newConfig *DynamicConfig) {
	changes := []string{}

	if oldConfig.Limits.MaxNodesPerCanvas != newConfig.Limits.MaxNodesPerCanvas {
		changes = append(changes, fmt.Sprintf("MaxNodesPerCanvas: %d -> %d",
			oldConfig.Limits.MaxNodesPerCanvas, newConfig.Limits.MaxNodesPerCanvas))
	}

	if oldConfig.Placement.MaxRings != newConfig.Placement.MaxRings {
		changes = append(changes, fmt.Sprintf("Placement.MaxRings: %d -> %d",
			oldConfig.Placement.MaxRings, newConfig.Placement.MaxRings))
	}

	if oldConfig.Persistence.SnapshotDebounceMs != newConfig.Persistence.SnapshotDebounceMs {
		changes = append(changes, fmt.Sprintf("SnapshotDebounceMs: %d -> %d",
			oldConfig.Persistence.SnapshotDebounceMs, newConfig.Persistence.SnapshotDebounceMs))
	}

	if len(changes) > 0 {
		w.logger.Info("Configuration changes detected",
			zap.Strings("changes", changes),
		)
	}
}

// OnChange registers a callback for configuration changes
func (w *ConfigWatcher) OnChange(handler func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// GetCurrent returns the current configuration
func (w *ConfigWatcher) GetCurrent() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// GetLimits returns current limits
func (w *ConfigWatcher) GetLimits() DynamicLimits {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current.Limits
}

// loadConfigFromFile loads configuration from a YAML file
func loadConfigFromFile(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultDynamicConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	// Set metadata if not present
	if config.Metadata.Version == "" {
		config.Metadata.Version = "1.0.0"
	}
	config.Metadata.UpdatedAt = time.Now()

	return config, nil
}

// SaveConfig saves the current configuration to file
func (w *ConfigWatcher) SaveConfig(config *DynamicConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Update metadata
	config.Metadata.UpdatedAt = time.Now()

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to temporary file first, then rename (atomic on Unix)
	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	w.current = config
	return nil
}
