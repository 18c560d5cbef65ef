package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Manage bots",
	Long: `Bots combine a system prompt, a generation provider and any number of
knowledge bases. Ask a bot with: ragline ask --bot <bot-id> <question>`,
}

var botCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a bot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotCreate,
}

var botListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bots",
	Args:  cobra.NoArgs,
	RunE:  runBotList,
}

var botCreateFlags struct {
	kbs      []string
	provider string
	model    string
	prompt   string
}

func init() {
	f := botCreateCmd.Flags()
	f.StringSliceVar(&botCreateFlags.kbs, "kb", nil, "knowledge base ids (repeatable)")
	f.StringVar(&botCreateFlags.provider, "provider", "", "provider config id used for answers")
	f.StringVar(&botCreateFlags.model, "model", "", "generation model")
	f.StringVar(&botCreateFlags.prompt, "system-prompt", "", "system prompt")

	botCmd.AddCommand(botCreateCmd)
	botCmd.AddCommand(botListCmd)
	rootCmd.AddCommand(botCmd)
}

func runBotCreate(cmd *cobra.Command, args []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	bot := &domain.Bot{
		Name:             args[0],
		CreatedBy:        localUser,
		AIProviderID:     botCreateFlags.provider,
		AIModelName:      botCreateFlags.model,
		SystemPrompt:     botCreateFlags.prompt,
		KnowledgeBaseIDs: botCreateFlags.kbs,
	}
	if err := kbService.SaveBot(commandContext(cmd), bot); err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	cmd.Printf("Created bot %s (%s)\n", bot.Name, bot.ID)
	return nil
}

func runBotList(cmd *cobra.Command, _ []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	bots, err := kbService.ListBots(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list bots: %w", err)
	}
	if len(bots) == 0 {
		cmd.Println("No bots.")
		return nil
	}

	cmd.Println(headingStyle.Render("Bots:"))
	for i := range bots {
		b := &bots[i]
		cmd.Printf("  %s  %s  %s\n", b.ID, b.Name, mutedStyle.Render(b.AIModelName))
		if len(b.KnowledgeBaseIDs) > 0 {
			cmd.Printf("      Knowledge bases: %s\n", strings.Join(b.KnowledgeBaseIDs, ", "))
		}
	}
	return nil
}
