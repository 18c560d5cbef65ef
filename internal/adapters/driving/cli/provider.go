package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// verifyTimeout bounds a provider check.
const verifyTimeout = 30 * time.Second

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage AI provider credentials",
	Long: `Store API keys and endpoints for embedding and generation providers.

Supported providers: ollama, openai, anthropic, google, custom.
Keys in GOOGLE_API_KEY, OPENAI_API_KEY and ANTHROPIC_API_KEY are used
when no stored provider matches.`,
}

var providerAddCmd = &cobra.Command{
	Use:   "add [kind]",
	Short: "Add a provider",
	Long: `Add a provider config. The API key is read from --key, or prompted for
without echo when omitted and the provider needs one.

Examples:
  ragline provider add openai
  ragline provider add ollama --base-url http://gpu-box:11434
  ragline provider add custom --base-url http://localhost:8000/v1 --models my-model`,
	Args: cobra.ExactArgs(1),
	RunE: runProviderAdd,
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	Args:  cobra.NoArgs,
	RunE:  runProviderList,
}

var providerRemoveCmd = &cobra.Command{
	Use:   "remove [provider-id]",
	Short: "Remove a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runProviderRemove,
}

var providerAddFlags struct {
	name    string
	key     string
	baseURL string
	models  []string
	verify  bool
}

func init() {
	f := providerAddCmd.Flags()
	f.StringVar(&providerAddFlags.name, "name", "", "display name")
	f.StringVar(&providerAddFlags.key, "key", "", "API key (prompted when omitted)")
	f.StringVar(&providerAddFlags.baseURL, "base-url", "", "endpoint override")
	f.StringSliceVar(&providerAddFlags.models, "models", nil, "models this provider may serve (default any)")
	f.BoolVar(&providerAddFlags.verify, "verify", true, "make a test call before saving")

	providerCmd.AddCommand(providerAddCmd)
	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerRemoveCmd)
	rootCmd.AddCommand(providerCmd)
}

func runProviderAdd(cmd *cobra.Command, args []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	kind, err := domain.ParseProviderKind(args[0])
	if err != nil {
		return err
	}

	key := providerAddFlags.key
	if key == "" && kind.RequiresCredential() {
		cmd.Printf("%s API key: ", kind.Description())
		key = readPassword()
		cmd.Println()
	}

	cfg := &domain.ProviderConfig{
		Kind:        kind,
		Scope:       domain.ScopeUser,
		ScopeID:     localUser,
		DisplayName: providerAddFlags.name,
		Credential:  key,
		BaseURL:     providerAddFlags.baseURL,
		Models:      providerAddFlags.models,
		IsActive:    true,
	}

	if providerAddFlags.verify && providerCheck != nil {
		cmd.Print("Verifying... ")
		ctx, cancel := context.WithTimeout(commandContext(cmd), verifyTimeout)
		err := providerCheck.Validate(ctx, cfg)
		cancel()
		if err != nil {
			cmd.Println(errorStyle.Render("FAILED"))
			return fmt.Errorf("provider check failed: %w", err)
		}
		cmd.Println(successStyle.Render("OK"))
	}

	if err := kbService.AddProvider(commandContext(cmd), cfg); err != nil {
		return fmt.Errorf("failed to add provider: %w", err)
	}
	cmd.Printf("Added %s provider %s\n", kind, cfg.ID)
	return nil
}

func runProviderList(cmd *cobra.Command, _ []string) error {
	if err := requireKBService(); err != nil {
		return err
	}

	configs, err := kbService.ListProviders(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}
	if len(configs) == 0 {
		cmd.Println("No providers stored. Environment keys are used when set.")
		return nil
	}

	cmd.Println(headingStyle.Render("Providers:"))
	for i := range configs {
		c := &configs[i]
		state := successStyle.Render("active")
		if !c.IsActive {
			state = mutedStyle.Render("inactive")
		}
		cmd.Printf("  %s  %-10s %s  %s\n", c.ID, c.Kind, c.DisplayName, state)
		if c.Credential != "" {
			cmd.Printf("      Key: %s\n", maskAPIKey(c.Credential))
		}
		if c.BaseURL != "" {
			cmd.Printf("      URL: %s\n", c.BaseURL)
		}
		if len(c.Models) > 0 {
			cmd.Printf("      Models: %s\n", strings.Join(c.Models, ", "))
		}
	}
	return nil
}

func runProviderRemove(cmd *cobra.Command, args []string) error {
	if err := requireKBService(); err != nil {
		return err
	}
	if err := kbService.RemoveProvider(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to remove provider: %w", err)
	}
	cmd.Printf("Removed provider %s\n", args[0])
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
