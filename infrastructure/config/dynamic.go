package config

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	domainconfig "canvas-backend/domain/config"
)

// DynamicConfigManager manages runtime configuration with hot-reload support.
// Static configuration comes from the environment; tunables (limits, placement,
// save cadence) come from a watched YAML file and can change without a restart.
type DynamicConfigManager struct {
	staticConfig *Config
	watcher      *ConfigWatcher

	mu        sync.RWMutex
	callbacks []ConfigChangeCallback

	logger *zap.Logger
}

// ConfigChangeCallback is called when the dynamic configuration changes
type ConfigChangeCallback func(newConfig *DynamicConfig)

// NewDynamicConfigManager creates a new dynamic configuration manager
func NewDynamicConfigManager(staticConfig *Config, logger *zap.Logger) (*DynamicConfigManager, error) {
	var watcher *ConfigWatcher
	if staticConfig.DynamicConfigPath != "" {
		w, err := NewConfigWatcher(staticConfig.DynamicConfigPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		watcher = w
	}

	manager := &DynamicConfigManager{
		staticConfig: staticConfig,
		watcher:      watcher,
		callbacks:    make([]ConfigChangeCallback, 0),
		logger:       logger,
	}

	if watcher != nil {
		watcher.OnChange(func(newConfig *DynamicConfig) {
			manager.handleConfigChange(newConfig)
		})
	}

	return manager, nil
}

// Start begins watching for configuration changes
func (m *DynamicConfigManager) Start() {
	if m.watcher != nil {
		m.watcher.Start()
	}
	m.logger.Info("Dynamic configuration manager started")
}

// Stop stops the configuration manager
func (m *DynamicConfigManager) Stop() {
	if m.watcher != nil {
		m.watcher.Stop()
	}
	m.logger.Info("Dynamic configuration manager stopped")
}

func (m *DynamicConfigManager) handleConfigChange(newConfig *DynamicConfig) {
	m.mu.RLock()
	callbacks := make([]ConfigChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	// Run callbacks async to avoid blocking the watcher
	for _, callback := range callbacks {
		go callback(newConfig)
	}
}

// OnChange registers a callback for configuration changes
func (m *DynamicConfigManager) OnChange(callback ConfigChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// GetConfig returns the static environment configuration
func (m *DynamicConfigManager) GetConfig() *Config {
	return m.staticConfig
}

// GetDynamicConfig returns the current dynamic configuration
func (m *DynamicConfigManager) GetDynamicConfig() *DynamicConfig {
	if m.watcher == nil {
		return defaultDynamicConfig()
	}
	return m.watcher.GetCurrent()
}

// CanvasConfig merges the dynamic tunables into the canvas business rules.
func (m *DynamicConfigManager) CanvasConfig() *domainconfig.CanvasConfig {
	cfg := domainconfig.DefaultCanvasConfig()
	dyn := m.GetDynamicConfig()

	cfg.MaxNodesPerCanvas = dyn.Limits.MaxNodesPerCanvas
	cfg.MaxEdgesPerCanvas = dyn.Limits.MaxEdgesPerCanvas
	cfg.PlacementMargin = dyn.Placement.Margin
	cfg.PlacementRingStep = dyn.Placement.RingStep
	cfg.PlacementMaxRings = dyn.Placement.MaxRings
	cfg.SnapshotDebounce = time.Duration(dyn.Persistence.SnapshotDebounceMs) * time.Millisecond
	cfg.ViewportDebounce = time.Duration(dyn.Persistence.ViewportDebounceMs) * time.Millisecond
	cfg.PollInterval = time.Duration(dyn.Persistence.PollIntervalMs) * time.Millisecond

	return cfg
}

// UpdateLimit updates a limit value dynamically
func (m *DynamicConfigManager) UpdateLimit(limit string, value int) error {
	if m.watcher == nil {
		return fmt.Errorf("dynamic configuration not available")
	}

	config := m.watcher.GetCurrent()

	switch limit {
	case "max_nodes_per_canvas":
		config.Limits.MaxNodesPerCanvas = value
	case "max_edges_per_canvas":
		config.Limits.MaxEdgesPerCanvas = value
	case "snapshot_debounce_ms":
		config.Persistence.SnapshotDebounceMs = value
	case "viewport_debounce_ms":
		config.Persistence.ViewportDebounceMs = value
	case "poll_interval_ms":
		config.Persistence.PollIntervalMs = value
	default:
		return fmt.Errorf("unknown limit: %s", limit)
	}

	if err := validateDynamicConfig(config); err != nil {
		return err
	}

	if err := m.watcher.SaveConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	m.logger.Info("Limit updated",
		zap.String("limit", limit),
		zap.Int("value", value),
	)

	return nil
}

// defaultDynamicConfig mirrors the domain defaults so a missing or partial
// YAML file behaves like no override at all.
func defaultDynamicConfig() *DynamicConfig {
	base := domainconfig.DefaultCanvasConfig()
	return &DynamicConfig{
		Limits: DynamicLimits{
			MaxNodesPerCanvas: base.MaxNodesPerCanvas,
			MaxEdgesPerCanvas: base.MaxEdgesPerCanvas,
		},
		Placement: DynamicPlacement{
			Margin:   base.PlacementMargin,
			RingStep: base.PlacementRingStep,
			MaxRings: base.PlacementMaxRings,
		},
		Persistence: DynamicPersistence{
			SnapshotDebounceMs: int(base.SnapshotDebounce / time.Millisecond),
			ViewportDebounceMs: int(base.ViewportDebounce / time.Millisecond),
			PollIntervalMs:     int(base.PollInterval / time.Millisecond),
		},
	}
}
