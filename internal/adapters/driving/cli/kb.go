package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// localUser owns everything created from the command line.
const localUser = "local"

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
	Long:  `Create, inspect and delete knowledge bases.`,
}

var kbCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a knowledge base",
	Long: `Create a knowledge base. The embedding provider and model default to
the embedding.provider and embedding.model settings and cannot be changed
without rebuilding the knowledge base's vectors.`,
	Args: cobra.ExactArgs(1),
	RunE: runKBCreate,
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	Args:  cobra.NoArgs,
	RunE:  runKBList,
}

var kbShowCmd = &cobra.Command{
	Use:   "show [kb-id]",
	Short: "Show knowledge base details",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBShow,
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete [kb-id]",
	Short: "Delete a knowledge base with its documents and vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBDelete,
}

var kbEmbeddingCmd = &cobra.Command{
	Use:   "embedding [kb-id]",
	Short: "Switch the embedding provider or model",
	Long: `Switch the embedding binding of a knowledge base. A knowledge base that
already holds vectors from another model is refused unless --force is given.
Existing vectors were produced by the previous model and stop matching
queries; run "ragline sync rebuild" afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runKBEmbedding,
}

var kbCreateFlags struct {
	description       string
	embeddingProvider string
	embeddingModel    string
	embeddingConfig   string
	aiProvider        string
	ragModel          string
	chunkSize         int
	chunkOverlap      int
}

var kbEmbeddingFlags struct {
	provider string
	model    string
	force    bool
}

func init() {
	f := kbCreateCmd.Flags()
	f.StringVarP(&kbCreateFlags.description, "description", "d", "", "description")
	f.StringVar(&kbCreateFlags.embeddingProvider, "embedding-provider", "", "embedding provider kind")
	f.StringVar(&kbCreateFlags.embeddingModel, "embedding-model", "", "embedding model")
	f.StringVar(&kbCreateFlags.embeddingConfig, "embedding-config", "", "provider config id to embed with")
	f.StringVar(&kbCreateFlags.aiProvider, "ai-provider", "", "provider config id used for answers")
	f.StringVar(&kbCreateFlags.ragModel, "rag-model", "", "generation model used for answers")
	f.IntVar(&kbCreateFlags.chunkSize, "chunk-size", 0, "characters per chunk (0 = setting)")
	f.IntVar(&kbCreateFlags.chunkOverlap, "chunk-overlap", 0, "characters shared by adjacent chunks (0 = setting)")

	kbEmbeddingCmd.Flags().StringVar(&kbEmbeddingFlags.provider, "provider", "", "embedding provider kind")
	kbEmbeddingCmd.Flags().StringVar(&kbEmbeddingFlags.model, "model", "", "embedding model")
	kbEmbeddingCmd.Flags().BoolVar(&kbEmbeddingFlags.force, "force", false, "switch even when vectors from another model exist")
	_ = kbEmbeddingCmd.MarkFlagRequired("provider")

	kbCmd.AddCommand(kbCreateCmd)
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbShowCmd)
	kbCmd.AddCommand(kbDeleteCmd)
	kbCmd.AddCommand(kbEmbeddingCmd)
	rootCmd.AddCommand(kbCmd)
}

func requireKBService() error {
	if kbService == nil {
		return errors.New("knowledge base service not configured")
	}
	return nil
}

func runKBCreate(cmd *cobra.Command, args []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	req := driving.CreateKnowledgeBaseRequest{
		Name:                args[0],
		Description:         kbCreateFlags.description,
		CreatedBy:           localUser,
		AIProviderID:        kbCreateFlags.aiProvider,
		RAGModel:            kbCreateFlags.ragModel,
		EmbeddingProviderID: kbCreateFlags.embeddingConfig,
		EmbeddingModel:      kbCreateFlags.embeddingModel,
		ChunkSize:           kbCreateFlags.chunkSize,
		ChunkOverlap:        kbCreateFlags.chunkOverlap,
	}
	if kbCreateFlags.embeddingProvider != "" {
		kind, err := domain.ParseProviderKind(kbCreateFlags.embeddingProvider)
		if err != nil {
			return err
		}
		req.EmbeddingProvider = kind
	} else if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return err
		}
		req.EmbeddingProvider = settings.EmbeddingProvider
	}

	kb, err := kbService.CreateKnowledgeBase(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}

	cmd.Printf("Created knowledge base %s (%s)\n", kb.Name, kb.ID)
	cmd.Printf("  Embedding: %s / %s\n", kb.EmbeddingProvider, kb.EmbeddingModel)
	cmd.Printf("  Chunking:  %d chars, %d overlap\n", kb.ChunkSize, kb.ChunkOverlap)
	return nil
}

func runKBList(cmd *cobra.Command, _ []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	kbs, err := kbService.ListKnowledgeBases(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	if len(kbs) == 0 {
		cmd.Println("No knowledge bases. Create one with: ragline kb create <name>")
		return nil
	}

	cmd.Println(headingStyle.Render("Knowledge bases:"))
	for i := range kbs {
		cmd.Printf("  %s  %s  %s  %d documents\n",
			kbs[i].ID, kbs[i].Name, mutedStyle.Render(kbs[i].EmbeddingModel), kbs[i].TotalDocuments)
	}
	return nil
}

func runKBShow(cmd *cobra.Command, args []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	kb, err := kbService.GetKnowledgeBase(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get knowledge base: %w", err)
	}

	cmd.Println(headingStyle.Render(kb.Name))
	cmd.Printf("  ID:          %s\n", kb.ID)
	if kb.Description != "" {
		cmd.Printf("  Description: %s\n", kb.Description)
	}
	cmd.Printf("  Embedding:   %s / %s\n", kb.EmbeddingProvider, kb.EmbeddingModel)
	if kb.EmbeddingProviderID != "" {
		cmd.Printf("  Embed with:  %s\n", kb.EmbeddingProviderID)
	}
	if kb.AIProviderID != "" || kb.RAGModel != "" {
		cmd.Printf("  Answers:     %s %s\n", kb.AIProviderID, kb.RAGModel)
	}
	cmd.Printf("  Chunking:    %d chars, %d overlap\n", kb.ChunkSize, kb.ChunkOverlap)
	cmd.Printf("  Documents:   %d\n", kb.TotalDocuments)
	cmd.Printf("  Created:     %s\n", kb.CreatedAt.Format("2006-01-02 15:04"))
	return nil
}

func runKBDelete(cmd *cobra.Command, args []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	if err := kbService.DeleteKnowledgeBase(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}
	cmd.Printf("Deleted knowledge base %s\n", args[0])
	return nil
}

func runKBEmbedding(cmd *cobra.Command, args []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	kind, err := domain.ParseProviderKind(kbEmbeddingFlags.provider)
	if err != nil {
		return err
	}
	kb, err := kbService.SetEmbedding(commandContext(cmd), args[0], kind, kbEmbeddingFlags.model, kbEmbeddingFlags.force)
	if errors.Is(err, domain.ErrEmbeddingModelMismatch) {
		return fmt.Errorf("failed to switch embedding: %w (re-run with --force, then ragline sync rebuild)", err)
	}
	if err != nil {
		return fmt.Errorf("failed to switch embedding: %w", err)
	}
	cmd.Printf("Knowledge base %s now embeds with %s / %s\n", kb.Name, kb.EmbeddingProvider, kb.EmbeddingModel)
	cmd.Println(warningStyle.Render("Existing vectors are stale. Run: ragline sync rebuild " + kb.ID))
	return nil
}
