package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage application settings",
	Long: `View and change settings stored in the config file.

Keys use dotted names, for example:
  ragline config set chunker.size 1500
  ragline config set vector.backend qdrant
  ragline config set embedding.provider openai`,
	RunE: runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every setting with its effective value",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a single setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Show where prompt templates live",
	Long: `Prompt templates are plain text files that can be edited in place.
Missing or empty files fall back to the built-in prompts.`,
	RunE: runConfigPrompts,
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPromptsCmd)
	rootCmd.AddCommand(configCmd)
}

func requireSettingsService() error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	if err := requireSettingsService(); err != nil {
		return err
	}

	cmd.Println(headingStyle.Render("Settings"))
	for _, key := range settingsService.Keys() {
		value, err := settingsService.Value(key)
		if err != nil {
			return err
		}
		cmd.Printf("  %-26s %s\n", key, displayValue(key, value))
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if err := requireSettingsService(); err != nil {
		return err
	}

	value, err := settingsService.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := requireSettingsService(); err != nil {
		return err
	}

	key, value := args[0], strings.TrimSpace(args[1])
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("%s = %s\n", key, displayValue(key, value))
	if key == services.KeyVectorBackend || key == services.KeyEmbeddingModel {
		cmd.Println(mutedStyle.Render("Takes effect on the next run. Existing knowledge bases keep their vectors."))
	}
	return nil
}

func runConfigPrompts(cmd *cobra.Command, _ []string) error {
	if promptStore == nil {
		return errors.New("prompt store not configured")
	}

	if d, ok := promptStore.(interface{ Dir() string }); ok {
		cmd.Printf("Prompt directory: %s\n", d.Dir())
	}
	for _, name := range []string{driven.PromptRAGSystem, driven.PromptContextPreamble} {
		text, err := promptStore.Load(name)
		if err != nil {
			return fmt.Errorf("failed to load prompt %s: %w", name, err)
		}
		cmd.Printf("\n%s\n%s\n", headingStyle.Render(name), text)
	}
	return nil
}

// displayValue masks secrets.
func displayValue(key, value string) string {
	if key == services.KeyQdrantAPIKey && value != "" {
		return maskAPIKey(value)
	}
	if value == "" {
		return mutedStyle.Render("(not set)")
	}
	return value
}
