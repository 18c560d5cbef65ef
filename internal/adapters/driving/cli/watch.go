package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/extractors"
	"github.com/custodia-labs/ragline/internal/logger"
	"github.com/custodia-labs/ragline/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep a knowledge base in sync with a directory",
	Long: `Ingest every supported file below a directory, then watch it. New and
modified files are re-ingested and deleted files are removed from the
knowledge base. Periodic maintenance also runs while watching.

Stop with Ctrl-C.`,
	Args:        cobra.ExactArgs(1),
	RunE:        runWatch,
	Annotations: map[string]string{withMaintenance: "true"},
}

var watchFlags struct {
	kb      string
	initial bool
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.kb, "kb", "", "knowledge base id")
	watchCmd.Flags().BoolVar(&watchFlags.initial, "initial", true, "ingest files not yet in the knowledge base on start")
	_ = watchCmd.MarkFlagRequired("kb")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(root, watcher.WithFilter(func(p string) bool {
		return extractors.TypeByExtension(p) != ""
	}))
	if err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	defer w.Close()

	ds := &dirSync{kb: watchFlags.kb, ingestion: ingestionService}
	if err := ds.load(ctx); err != nil {
		return err
	}

	if watchFlags.initial {
		paths, err := expandPath(root)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if !ds.known(p) {
				ds.apply(ctx, cmd, watcher.Change{Path: p, Type: watcher.ChangeCreated})
			}
		}
	}

	cmd.Printf("Watching %s (Ctrl-C to stop)\n", root)
	err = w.Run(ctx, func(c watcher.Change) { ds.apply(ctx, cmd, c) })
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// dirSync maps watched paths to documents.
type dirSync struct {
	kb        string
	ingestion driving.IngestionService
	docs      map[string]string
}

func (s *dirSync) load(ctx context.Context) error {
	docs, err := s.ingestion.ListDocuments(ctx, s.kb)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	s.docs = make(map[string]string, len(docs))
	for i := range docs {
		if docs[i].URI != "" {
			s.docs[docs[i].URI] = docs[i].ID
		}
	}
	return nil
}

func (s *dirSync) known(path string) bool {
	_, ok := s.docs[path]
	return ok
}

// apply replaces or removes the document for c.Path.
func (s *dirSync) apply(ctx context.Context, cmd *cobra.Command, c watcher.Change) {
	name := filepath.Base(c.Path)

	if id, ok := s.docs[c.Path]; ok {
		if err := s.ingestion.DeleteDocument(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			cmd.PrintErrf("%s %s: %v\n", errorStyle.Render("✗"), name, err)
			return
		}
		delete(s.docs, c.Path)
	}
	if c.Type == watcher.ChangeDeleted {
		cmd.Printf("%s %s\n", mutedStyle.Render("removed"), name)
		return
	}

	doc, job, err := s.ingestion.Ingest(ctx, driving.IngestRequest{
		KnowledgeBaseID: s.kb,
		Name:            name,
		Path:            c.Path,
	})
	if err != nil {
		cmd.PrintErrf("%s %s: %v\n", errorStyle.Render("✗"), name, err)
		return
	}
	s.docs[c.Path] = doc.ID

	final, err := s.ingestion.Wait(ctx, job.ID)
	if err != nil {
		logger.Debug("waiting for %s: %v", job.ID, err)
		return
	}
	cmd.Println(jobLine(*final))
}
