package store

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/chatdesk/chatdesk/internal/domain"
)

// settingsCacheKey is the single cache entry for the singleton row.
const settingsCacheKey = "ai_settings"

// SettingsStore reads and writes the singleton AI settings record.
// Reads are cached briefly since every pipeline invocation fetches them.
type SettingsStore struct {
	db    *DB
	cache *gocache.Cache
}

// NewSettingsStore creates a settings store using the given database.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{
		db:    db,
		cache: gocache.New(30*time.Second, time.Minute),
	}
}

// Get returns the current settings. The singleton row is seeded by
// migration, so a missing row falls back to defaults rather than erroring.
func (s *SettingsStore) Get(ctx context.Context) (domain.AISettings, error) {
	if cached, ok := s.cache.Get(settingsCacheKey); ok {
		return cached.(domain.AISettings), nil
	}

	var out domain.AISettings
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT tone, behaviour, context_memory, timeout_hours
		FROM ai_settings WHERE id = 1`).
		Scan(&out.Tone, &out.Behaviour, &out.ContextMemory, &out.TimeoutHours)
	if err != nil {
		s.db.log.Warn().Err(err).Msg("reading ai settings, using defaults")
		return domain.DefaultAISettings(), nil
	}

	s.cache.SetDefault(settingsCacheKey, out)
	return out, nil
}

// Save validates and persists new settings, replacing the singleton row.
func (s *SettingsStore) Save(ctx context.Context, settings domain.AISettings) error {
	if err := validateSettings(settings); err != nil {
		return domain.ValidationError("save settings", err)
	}

	_, err := s.db.sql.ExecContext(ctx, `
		UPDATE ai_settings
		SET tone = ?, behaviour = ?, context_memory = ?, timeout_hours = ?, updated_at = ?
		WHERE id = 1`,
		settings.Tone, settings.Behaviour, settings.ContextMemory,
		settings.TimeoutHours, nowUTC())
	if err != nil {
		return domain.PersistenceError("save settings", err)
	}

	s.cache.Delete(settingsCacheKey)
	return nil
}

func validateSettings(settings domain.AISettings) error {
	if !settings.Tone.Valid() {
		return fmt.Errorf("unknown tone %q", settings.Tone)
	}
	if len(settings.Behaviour) > domain.MaxBehaviourLength {
		return fmt.Errorf("behaviour exceeds %d characters", domain.MaxBehaviourLength)
	}
	switch settings.ContextMemory {
	case "1", "2", "3", "5", domain.ContextMemoryDisabled:
	default:
		return fmt.Errorf("unknown context memory length %q", settings.ContextMemory)
	}
	if settings.TimeoutHours < domain.MinTimeoutHours || settings.TimeoutHours > domain.MaxTimeoutHours {
		return fmt.Errorf("timeout %d outside %d-%d hours",
			settings.TimeoutHours, domain.MinTimeoutHours, domain.MaxTimeoutHours)
	}
	return nil
}
