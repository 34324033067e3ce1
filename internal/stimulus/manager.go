package stimulus

import (
	"sync"

	"github.com/isi-macroscope/acquisition-core/internal/config"
)

// Manager owns the single live Generator instance and invalidates it when
// the monitor or stimulus parameter groups change, rebuilding lazily on the
// next request rather than eagerly on the change notification.
type Manager struct {
	mu        sync.Mutex
	cm        *config.ConfigManager
	generator *Generator
}

// NewManager creates a Manager bound to cm and registers for invalidation
// on both the monitor and stimulus parameter groups.
func NewManager(cm *config.ConfigManager) *Manager {
	m := &Manager{cm: cm}
	cm.OnChange(config.GroupMonitor, func(*config.Config) { m.invalidate() })
	cm.OnChange(config.GroupStimulus, func(*config.Config) { m.invalidate() })
	return m
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generator = nil
}

// Generator returns the current generator, rebuilding it from the live
// configuration if it was invalidated since the last call.
func (m *Manager) Generator() *Generator {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generator == nil {
		cfg := m.cm.GetConfig()
		m.generator = NewGenerator(cfg.Monitor, cfg.Stimulus)
	}
	return m.generator
}
