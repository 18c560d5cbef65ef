package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// =============================================================================
// ProviderConfigStore Implementation
// =============================================================================

type providerConfigStore struct {
	store *Store
}

var _ driven.ProviderConfigStore = (*providerConfigStore)(nil)

const providerColumns = `id, kind, scope, scope_id, display_name, credential, base_url, models, is_active, created_at`

// SaveProviderConfig creates or updates a config.
func (s *providerConfigStore) SaveProviderConfig(ctx context.Context, cfg *domain.ProviderConfig) error {
	if cfg.ID == "" {
		return domain.ErrInvalidInput
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	models, err := marshalJSON(cfg.Models)
	if err != nil {
		return fmt.Errorf("marshalling models: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO provider_configs (`+providerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			scope = excluded.scope,
			scope_id = excluded.scope_id,
			display_name = excluded.display_name,
			credential = excluded.credential,
			base_url = excluded.base_url,
			models = excluded.models,
			is_active = excluded.is_active
	`, cfg.ID, string(cfg.Kind), string(cfg.Scope), cfg.ScopeID, cfg.DisplayName, cfg.Credential,
		cfg.BaseURL, models, cfg.IsActive, cfg.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving provider config: %w", err)
	}
	return nil
}

// Lookup returns the config with id stored under scope/scopeID.
func (s *providerConfigStore) Lookup(
	ctx context.Context, scope domain.Scope, scopeID, id string,
) (*domain.ProviderConfig, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+providerColumns+` FROM provider_configs
		WHERE id = ? AND scope = ? AND scope_id = ?
	`, id, string(scope), scopeID)
	cfg, err := scanProviderConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return cfg, err
}

// ListActive returns active configs under scope/scopeID, oldest first.
func (s *providerConfigStore) ListActive(
	ctx context.Context, scope domain.Scope, scopeID string,
) ([]domain.ProviderConfig, error) {
	return s.query(ctx, `
		SELECT `+providerColumns+` FROM provider_configs
		WHERE scope = ? AND scope_id = ? AND is_active = 1
		ORDER BY created_at, rowid
	`, string(scope), scopeID)
}

// ListProviderConfigs returns every stored config.
func (s *providerConfigStore) ListProviderConfigs(ctx context.Context) ([]domain.ProviderConfig, error) {
	return s.query(ctx, `SELECT `+providerColumns+` FROM provider_configs ORDER BY created_at, rowid`)
}

// DeleteProviderConfig removes a config by ID.
func (s *providerConfigStore) DeleteProviderConfig(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM provider_configs WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting provider config: %w", err)
	}
	return nil
}

func (s *providerConfigStore) query(ctx context.Context, query string, args ...any) ([]domain.ProviderConfig, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying provider configs: %w", err)
	}
	defer rows.Close()

	var configs []domain.ProviderConfig //nolint:prealloc // size unknown from query
	for rows.Next() {
		cfg, err := scanProviderConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provider configs: %w", err)
	}
	return configs, nil
}

func scanProviderConfig(row scanner) (*domain.ProviderConfig, error) {
	var cfg domain.ProviderConfig
	var kind, scope, models string
	err := row.Scan(&cfg.ID, &kind, &scope, &cfg.ScopeID, &cfg.DisplayName, &cfg.Credential,
		&cfg.BaseURL, &models, &cfg.IsActive, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning provider config: %w", err)
	}
	cfg.Kind = domain.ProviderKind(kind)
	cfg.Scope = domain.Scope(scope)
	if err := unmarshalJSON(models, &cfg.Models); err != nil {
		return nil, fmt.Errorf("unmarshalling models: %w", err)
	}
	return &cfg, nil
}
