package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyChunkSize           = "chunker.size"
	KeyChunkOverlap        = "chunker.overlap"
	KeyEmbeddingProvider   = "embedding.provider"
	KeyEmbeddingModel      = "embedding.model"
	KeyVectorBackend       = "vector.backend"
	KeyQdrantURL           = "vector.qdrant_url"
	KeyQdrantAPIKey        = "vector.qdrant_api_key"
	KeyCollection          = "vector.collection"
	KeyDimensions          = "vector.dimensions"
	KeyBatchSize           = "pipeline.batch_size"
	KeyBatchDelayMS        = "pipeline.batch_delay_ms"
	KeyRateLimitRPS        = "pipeline.rate_limit_rps"
	KeyMaxConcurrent       = "jobs.max_concurrent"
	KeyJobRetain           = "jobs.retain"
	KeyMaintenanceSchedule = "maintenance.schedule"
	KeyCacheTTLMinutes     = "cache.ttl_minutes"
	KeyGenerationModel     = "generation.default_model"
)

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
)

// settingKeys lists every recognised key in display order.
var settingKeys = []struct {
	key  string
	kind settingKind
}{
	{KeyChunkSize, kindInt},
	{KeyChunkOverlap, kindInt},
	{KeyEmbeddingProvider, kindString},
	{KeyEmbeddingModel, kindString},
	{KeyGenerationModel, kindString},
	{KeyVectorBackend, kindString},
	{KeyQdrantURL, kindString},
	{KeyQdrantAPIKey, kindString},
	{KeyCollection, kindString},
	{KeyDimensions, kindInt},
	{KeyBatchSize, kindInt},
	{KeyBatchDelayMS, kindInt},
	{KeyRateLimitRPS, kindFloat},
	{KeyMaxConcurrent, kindInt},
	{KeyJobRetain, kindInt},
	{KeyMaintenanceSchedule, kindString},
	{KeyCacheTTLMinutes, kindInt},
}

// SettingsService reads and writes AppSettings through a ConfigStore.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunker: domain.ChunkerSettings{
			Size:    s.getInt(KeyChunkSize, d.Chunker.Size),
			Overlap: s.getInt(KeyChunkOverlap, d.Chunker.Overlap),
		},
		Pipeline: domain.PipelineSettings{
			BatchSize:    s.getInt(KeyBatchSize, d.Pipeline.BatchSize),
			BatchDelay:   s.getMillis(KeyBatchDelayMS, d.Pipeline.BatchDelay),
			RateLimitRPS: s.getFloat(KeyRateLimitRPS, d.Pipeline.RateLimitRPS),
		},
		Vector: domain.VectorSettings{
			Backend:    domain.VectorBackend(s.getString(KeyVectorBackend, string(d.Vector.Backend))),
			QdrantURL:  s.getString(KeyQdrantURL, d.Vector.QdrantURL),
			APIKey:     s.configStore.GetString(KeyQdrantAPIKey),
			Collection: s.getString(KeyCollection, d.Vector.Collection),
		},
		Jobs: domain.JobSettings{
			MaxConcurrent: s.getInt(KeyMaxConcurrent, d.Jobs.MaxConcurrent),
			Retain:        s.getInt(KeyJobRetain, d.Jobs.Retain),
		},
		EmbeddingProvider:   domain.ProviderKind(s.getString(KeyEmbeddingProvider, string(d.EmbeddingProvider))),
		GenerationModel:     s.getString(KeyGenerationModel, d.GenerationModel),
		MaintenanceSchedule: s.getString(KeyMaintenanceSchedule, d.MaintenanceSchedule),
		QueryCacheTTL:       time.Duration(s.getInt(KeyCacheTTLMinutes, int(d.QueryCacheTTL/time.Minute))) * time.Minute,
	}
	settings.EmbeddingModel = s.getString(KeyEmbeddingModel, domain.DefaultEmbeddingModel(settings.EmbeddingProvider))
	settings.Vector.Dimensions = s.getInt(KeyDimensions, domain.DimensionsFor(settings.EmbeddingModel))

	if !settings.Vector.Backend.IsValid() {
		return nil, fmt.Errorf("%w: %s: unknown backend %q", domain.ErrConfiguration, KeyVectorBackend,
			settings.Vector.Backend)
	}
	if !settings.EmbeddingProvider.SupportsEmbedding() {
		return nil, fmt.Errorf("%w: %s: %q cannot embed", domain.ErrConfiguration, KeyEmbeddingProvider,
			settings.EmbeddingProvider)
	}
	return settings, nil
}

// Set validates value for key and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var typed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, key)
		}
		typed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrValidation, key)
		}
		typed = f
	default:
		if err := validateString(key, value); err != nil {
			return err
		}
		typed = value
	}

	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// Keys returns every recognised key in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(settingKeys))
	for i, k := range settingKeys {
		keys[i] = k.key
	}
	return keys
}

// Value returns the effective value of key, defaults included.
func (s *SettingsService) Value(key string) (string, error) {
	if _, ok := lookupSetting(key); !ok {
		return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	settings, err := s.Get()
	if err != nil {
		return "", err
	}

	switch key {
	case KeyChunkSize:
		return strconv.Itoa(settings.Chunker.Size), nil
	case KeyChunkOverlap:
		return strconv.Itoa(settings.Chunker.Overlap), nil
	case KeyEmbeddingProvider:
		return string(settings.EmbeddingProvider), nil
	case KeyEmbeddingModel:
		return settings.EmbeddingModel, nil
	case KeyGenerationModel:
		return settings.GenerationModel, nil
	case KeyVectorBackend:
		return string(settings.Vector.Backend), nil
	case KeyQdrantURL:
		return settings.Vector.QdrantURL, nil
	case KeyQdrantAPIKey:
		if settings.Vector.APIKey == "" {
			return "", nil
		}
		return "********", nil
	case KeyCollection:
		return settings.Vector.Collection, nil
	case KeyDimensions:
		return strconv.Itoa(settings.Vector.Dimensions), nil
	case KeyBatchSize:
		return strconv.Itoa(settings.Pipeline.BatchSize), nil
	case KeyBatchDelayMS:
		return strconv.FormatInt(settings.Pipeline.BatchDelay.Milliseconds(), 10), nil
	case KeyRateLimitRPS:
		return strconv.FormatFloat(settings.Pipeline.RateLimitRPS, 'g', -1, 64), nil
	case KeyMaxConcurrent:
		return strconv.Itoa(settings.Jobs.MaxConcurrent), nil
	case KeyJobRetain:
		return strconv.Itoa(settings.Jobs.Retain), nil
	case KeyMaintenanceSchedule:
		return settings.MaintenanceSchedule, nil
	default: // KeyCacheTTLMinutes
		return strconv.Itoa(int(settings.QueryCacheTTL / time.Minute)), nil
	}
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func lookupSetting(key string) (settingKind, bool) {
	for _, k := range settingKeys {
		if k.key == key {
			return k.kind, true
		}
	}
	return 0, false
}

func validateString(key, value string) error {
	switch key {
	case KeyEmbeddingProvider:
		kind, err := domain.ParseProviderKind(value)
		if err != nil || !kind.SupportsEmbedding() {
			return fmt.Errorf("%w: %s: %q cannot embed", domain.ErrValidation, key, value)
		}
	case KeyVectorBackend:
		if !domain.VectorBackend(value).IsValid() {
			return fmt.Errorf("%w: %s must be qdrant, badger or memory", domain.ErrValidation, key)
		}
	case KeyMaintenanceSchedule:
		if value == "" {
			return nil
		}
		if _, err := cron.ParseStandard(value); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrValidation, key, err)
		}
	case KeyQdrantURL:
		if value != "" && !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("%w: %s must be an http(s) URL", domain.ErrValidation, key)
		}
	}
	return nil
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return time.Duration(s.configStore.GetInt(key)) * time.Millisecond
}
