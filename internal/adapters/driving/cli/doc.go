package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage ingested documents",
	Long:  `List or delete the documents of a knowledge base.`,
}

var docListCmd = &cobra.Command{
	Use:   "list [kb-id]",
	Short: "List documents in a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocList,
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document with its chunks and vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocDelete,
}

func init() {
	docCmd.AddCommand(docListCmd)
	docCmd.AddCommand(docDeleteCmd)
	rootCmd.AddCommand(docCmd)
}

func runDocList(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	docs, err := ingestionService.ListDocuments(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Printf("Documents (%d):\n", len(docs))
	for i := range docs {
		d := &docs[i]
		cmd.Printf("  %s  %-32s %s  %d chunks\n", d.ID, truncate(d.Name, 32), statusLabel(string(d.Status)), d.ChunkCount)
		if d.Error != "" {
			cmd.Printf("      %s\n", errorStyle.Render(d.Error))
		}
	}
	return nil
}

func runDocDelete(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if err := ingestionService.DeleteDocument(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	cmd.Printf("Deleted document %s\n", args[0])
	return nil
}
