package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Repair the vector index",
	Long: `Compare stored chunks with the vector index and re-embed what is missing.

Run "sync rebuild" after changing a knowledge base's embedding model.`,
}

var syncVerifyCmd = &cobra.Command{
	Use:   "verify [kb-id]",
	Short: "Report chunks without a usable vector",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncVerify,
}

var syncMissingCmd = &cobra.Command{
	Use:   "missing [kb-id]",
	Short: "Embed chunks that have no vector",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncMissing,
}

var syncRebuildCmd = &cobra.Command{
	Use:   "rebuild [kb-id]",
	Short: "Re-embed every chunk of a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncRebuild,
}

func init() {
	syncCmd.AddCommand(syncVerifyCmd)
	syncCmd.AddCommand(syncMissingCmd)
	syncCmd.AddCommand(syncRebuildCmd)
	rootCmd.AddCommand(syncCmd)
}

func requireSyncService() error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}
	return nil
}

func runSyncVerify(cmd *cobra.Command, args []string) error {
	if err := requireSyncService(); err != nil {
		return err
	}

	report, err := syncService.Verify(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	cmd.Printf("Chunks:            %d\n", report.TotalChunks)
	cmd.Printf("Missing vectors:   %d\n", report.MissingVectors)
	cmd.Printf("Failed embeddings: %d\n", report.FailedEmbeddings)
	if report.MissingVectors > 0 || report.FailedEmbeddings > 0 {
		cmd.Println(warningStyle.Render(fmt.Sprintf("Run 'ragline sync missing %s' to repair.", args[0])))
	} else {
		cmd.Println(successStyle.Render("Index is complete."))
	}
	return nil
}

func runSyncMissing(cmd *cobra.Command, args []string) error {
	if err := requireSyncService(); err != nil {
		return err
	}

	cmd.Printf("Embedding missing chunks of %s...\n", args[0])
	result, err := syncService.SyncMissing(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return printSyncResult(cmd, result.Processed, result.Errors)
}

func runSyncRebuild(cmd *cobra.Command, args []string) error {
	if err := requireSyncService(); err != nil {
		return err
	}

	cmd.Printf("Rebuilding vectors of %s...\n", args[0])
	result, err := syncService.Rebuild(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	return printSyncResult(cmd, result.Processed, result.Errors)
}

func printSyncResult(cmd *cobra.Command, processed, failed int) error {
	cmd.Printf("%d chunks embedded, %d errors\n", processed, failed)
	if failed > 0 {
		return fmt.Errorf("%d chunks failed to embed", failed)
	}
	return nil
}
