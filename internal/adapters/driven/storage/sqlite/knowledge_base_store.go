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

// knowledgeBaseStore implements driven.KnowledgeBaseStore.
type knowledgeBaseStore struct {
	store *Store
}

var _ driven.KnowledgeBaseStore = (*knowledgeBaseStore)(nil)

const knowledgeBaseColumns = `id, name, description, workspace_id, created_by, ai_provider_id, rag_model,
	embedding_provider_id, embedding_provider, embedding_model, chunk_size, chunk_overlap,
	created_at, updated_at`

// SaveKnowledgeBase stores or updates a knowledge base.
func (s *knowledgeBaseStore) SaveKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error {
	now := time.Now().UTC()
	if kb.CreatedAt.IsZero() {
		kb.CreatedAt = now
	}
	if kb.UpdatedAt.IsZero() {
		kb.UpdatedAt = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (`+knowledgeBaseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			workspace_id = excluded.workspace_id,
			created_by = excluded.created_by,
			ai_provider_id = excluded.ai_provider_id,
			rag_model = excluded.rag_model,
			embedding_provider_id = excluded.embedding_provider_id,
			embedding_provider = excluded.embedding_provider,
			embedding_model = excluded.embedding_model,
			chunk_size = excluded.chunk_size,
			chunk_overlap = excluded.chunk_overlap,
			updated_at = excluded.updated_at
	`, kb.ID, kb.Name, kb.Description, kb.WorkspaceID, kb.CreatedBy, kb.AIProviderID, kb.RAGModel,
		kb.EmbeddingProviderID, string(kb.EmbeddingProvider), kb.EmbeddingModel, kb.ChunkSize, kb.ChunkOverlap,
		kb.CreatedAt, kb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving knowledge base: %w", err)
	}
	return nil
}

// GetKnowledgeBase retrieves a knowledge base by ID.
func (s *knowledgeBaseStore) GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+knowledgeBaseColumns+` FROM knowledge_bases WHERE id = ?`, id)
	kb, err := scanKnowledgeBase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return kb, err
}

// ListKnowledgeBases returns every knowledge base ordered by name.
func (s *knowledgeBaseStore) ListKnowledgeBases(ctx context.Context) ([]domain.KnowledgeBase, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+knowledgeBaseColumns+` FROM knowledge_bases ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge bases: %w", err)
	}
	defer rows.Close()

	var kbs []domain.KnowledgeBase //nolint:prealloc // size unknown from query
	for rows.Next() {
		kb, err := scanKnowledgeBase(rows)
		if err != nil {
			return nil, err
		}
		kbs = append(kbs, *kb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge bases: %w", err)
	}
	return kbs, nil
}

// DeleteKnowledgeBase removes a knowledge base. Documents and chunks cascade.
func (s *knowledgeBaseStore) DeleteKnowledgeBase(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM knowledge_bases WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting knowledge base: %w", err)
	}
	return nil
}

func scanKnowledgeBase(row scanner) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var provider string
	err := row.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.WorkspaceID, &kb.CreatedBy, &kb.AIProviderID,
		&kb.RAGModel, &kb.EmbeddingProviderID, &provider, &kb.EmbeddingModel, &kb.ChunkSize, &kb.ChunkOverlap,
		&kb.CreatedAt, &kb.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning knowledge base: %w", err)
	}
	kb.EmbeddingProvider = domain.ProviderKind(provider)
	return &kb, nil
}

// botStore implements driven.BotStore.
type botStore struct {
	store *Store
}

var _ driven.BotStore = (*botStore)(nil)

const botColumns = `id, name, workspace_id, created_by, ai_provider_id, ai_model_name, system_prompt,
	knowledge_base_ids, created_at`

// SaveBot stores or updates a bot.
func (s *botStore) SaveBot(ctx context.Context, bot *domain.Bot) error {
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = time.Now().UTC()
	}
	kbIDs, err := marshalJSON(bot.KnowledgeBaseIDs)
	if err != nil {
		return fmt.Errorf("marshalling knowledge base ids: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO bots (`+botColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			workspace_id = excluded.workspace_id,
			created_by = excluded.created_by,
			ai_provider_id = excluded.ai_provider_id,
			ai_model_name = excluded.ai_model_name,
			system_prompt = excluded.system_prompt,
			knowledge_base_ids = excluded.knowledge_base_ids
	`, bot.ID, bot.Name, bot.WorkspaceID, bot.CreatedBy, bot.AIProviderID, bot.AIModelName,
		bot.SystemPrompt, kbIDs, bot.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving bot: %w", err)
	}
	return nil
}

// GetBot retrieves a bot by ID.
func (s *botStore) GetBot(ctx context.Context, id string) (*domain.Bot, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM bots WHERE id = ?`, id)
	bot, err := scanBot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return bot, err
}

// ListBots returns every bot ordered by name.
func (s *botStore) ListBots(ctx context.Context) ([]domain.Bot, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+botColumns+` FROM bots ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying bots: %w", err)
	}
	defer rows.Close()

	var bots []domain.Bot //nolint:prealloc // size unknown from query
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *bot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bots: %w", err)
	}
	return bots, nil
}

// DeleteBot removes a bot.
func (s *botStore) DeleteBot(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM bots WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting bot: %w", err)
	}
	return nil
}

func scanBot(row scanner) (*domain.Bot, error) {
	var bot domain.Bot
	var kbIDs string
	err := row.Scan(&bot.ID, &bot.Name, &bot.WorkspaceID, &bot.CreatedBy, &bot.AIProviderID,
		&bot.AIModelName, &bot.SystemPrompt, &kbIDs, &bot.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning bot: %w", err)
	}
	if err := unmarshalJSON(kbIDs, &bot.KnowledgeBaseIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling knowledge base ids: %w", err)
	}
	return &bot, nil
}
