package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

var (
	askKBs       []string
	askBot       string
	askLimit     int
	askThreshold float64
	askModel     string
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question",
	Long: `Answer a question from the content of one or more knowledge bases, or
through a bot. Without --kb or --bot the question goes straight to the
generation model with no retrieved context.

Examples:
  ragline ask --kb <kb-id> "How do I rotate the API key?"
  ragline ask --bot <bot-id> "What changed in version 2?"
  ragline ask --kb <kb-id> --threshold 0.3 --limit 10 --json "deployment steps"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVar(&askKBs, "kb", nil, "knowledge base ids (repeatable)")
	askCmd.Flags().StringVar(&askBot, "bot", "", "bot id")
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", domain.DefaultQueryLimit, "chunks retrieved per knowledge base")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", domain.DefaultThreshold, "minimum similarity score")
	askCmd.Flags().StringVar(&askModel, "model", "", "generation model override")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	question := strings.Join(args, " ")
	hints := domain.ScopeHints{
		KnowledgeBaseIDs: askKBs,
		BotID:            askBot,
		Owner:            domain.Owner{UserID: localUser},
	}
	opts := domain.AnswerOptions{
		Limit:               askLimit,
		SimilarityThreshold: askThreshold,
		Model:               askModel,
	}

	answer, err := queryService.Answer(commandContext(cmd), question, hints, opts)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Answer)
	if len(answer.Sources) == 0 {
		return nil
	}

	cmd.Println()
	cmd.Println(headingStyle.Render("Sources:"))
	for i := range answer.Sources {
		s := &answer.Sources[i]
		title := s.DocumentID
		if name, ok := s.Metadata["documentName"].(string); ok && name != "" {
			title = name
		}
		cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, title, s.ChunkIndex, s.Score)
		cmd.Printf("      %s\n", mutedStyle.Render(snippet(s.Content, 120)))
	}
	return nil
}

// snippet flattens whitespace and cuts s to n runes.
func snippet(s string, n int) string {
	return truncate(strings.Join(strings.Fields(s), " "), n)
}
