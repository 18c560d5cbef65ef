package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/extractors"
)

// maxStdinSize caps documents piped on stdin.
const maxStdinSize = 20 << 20

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|dir|-]...",
	Short: "Add documents to a knowledge base",
	Long: `Ingest files, directories (recursively), standard input ("-") or a URL
into a knowledge base. Documents are chunked and embedded in the
background; the command returns once every job has finished.

Supported formats: plain text and source files, Markdown, HTML, DOCX and
EML.

With --crawl, --url is the start of a website crawl: pages on the same host
are followed breadth-first up to --max-pages pages and --max-depth links
deep, and pages already in the knowledge base are skipped.

Examples:
  ragline ingest --kb <kb-id> notes.md docs/
  cat report.txt | ragline ingest --kb <kb-id> --name report -
  ragline ingest --kb <kb-id> --url https://example.com/guide --wait
  ragline ingest --kb <kb-id> --url https://example.com/docs/ --crawl --max-pages 100 --exclude '/blog/'`,
	RunE: runIngest,
}

var ingestFlags struct {
	kb       string
	url      string
	name     string
	mimeType string
	wait     bool
	crawl    bool
	maxPages int
	maxDepth int
	include  []string
	exclude  []string
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestFlags.kb, "kb", "", "knowledge base id")
	f.StringVar(&ingestFlags.url, "url", "", "fetch and ingest a web page")
	f.StringVar(&ingestFlags.name, "name", "", "document name (stdin and --url)")
	f.StringVar(&ingestFlags.mimeType, "mime-type", "", "override the detected MIME type")
	f.BoolVarP(&ingestFlags.wait, "wait", "w", false, "show live progress while jobs run")
	f.BoolVar(&ingestFlags.crawl, "crawl", false, "crawl the site starting at --url")
	f.IntVar(&ingestFlags.maxPages, "max-pages", extractors.DefaultCrawlPages, "pages to fetch when crawling")
	f.IntVar(&ingestFlags.maxDepth, "max-depth", extractors.DefaultCrawlDepth, "link hops to follow when crawling")
	f.StringArrayVar(&ingestFlags.include, "include", nil, "only follow links matching these regular expressions")
	f.StringArrayVar(&ingestFlags.exclude, "exclude", nil, "never follow links matching these regular expressions")
	_ = ingestCmd.MarkFlagRequired("kb")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	if ingestFlags.crawl && ingestFlags.url == "" {
		return errors.New("--crawl needs a start page in --url")
	}
	requests, err := ingestRequests(cmd, args)
	if err != nil {
		return err
	}
	if len(requests) == 0 && !ingestFlags.crawl {
		return errors.New("nothing to ingest: pass files, directories, - or --url")
	}

	ctx := commandContext(cmd)

	var stopProgress func()
	if ingestFlags.wait && eventSource != nil {
		stopProgress = streamProgress(cmd)
	}

	var jobs []*domain.ProcessingJob
	var failed int
	for _, req := range requests {
		doc, job, err := ingestionService.Ingest(ctx, req)
		if err != nil {
			failed++
			cmd.PrintErrf("%s %s: %v\n", errorStyle.Render("✗"), documentLabel(req), err)
			continue
		}
		if !ingestFlags.wait {
			cmd.Printf("Queued %s as %s (job %s)\n", doc.Name, doc.ID, job.ID)
		}
		jobs = append(jobs, job)
	}

	total := len(requests)
	if ingestFlags.crawl {
		crawled, err := crawlSite(cmd)
		jobs = append(jobs, crawled...)
		total += len(crawled)
		if err != nil {
			failed++
			total++
			cmd.PrintErrf("%s crawl of %s: %v\n", errorStyle.Render("✗"), ingestFlags.url, err)
		}
	}

	var completed, chunks int
	for _, job := range jobs {
		final, err := ingestionService.Wait(ctx, job.ID)
		if err != nil {
			if stopProgress != nil {
				stopProgress()
			}
			return fmt.Errorf("waiting for %s: %w", job.ID, err)
		}
		if final.Status == domain.JobFailed {
			failed++
		} else {
			completed++
		}
		chunks += final.ProcessedChunks
		if !ingestFlags.wait {
			cmd.Println(jobLine(*final))
		}
	}
	if stopProgress != nil {
		stopProgress()
	}

	cmd.Printf("\n%d documents, %d chunks embedded, %d failed\n", completed, chunks, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, total)
	}
	return nil
}

// crawlSite runs the --crawl request and returns the jobs it queued, even
// when the crawl stopped early.
func crawlSite(cmd *cobra.Command) ([]*domain.ProcessingJob, error) {
	result, err := ingestionService.Crawl(commandContext(cmd), driving.CrawlRequest{
		KnowledgeBaseID: ingestFlags.kb,
		URL:             ingestFlags.url,
		MaxPages:        ingestFlags.maxPages,
		MaxDepth:        ingestFlags.maxDepth,
		Include:         ingestFlags.include,
		Exclude:         ingestFlags.exclude,
	})
	if result == nil {
		return nil, err
	}

	jobs := make([]*domain.ProcessingJob, 0, len(result.Jobs))
	for i := range result.Jobs {
		job := result.Jobs[i]
		if !ingestFlags.wait {
			cmd.Printf("Queued %s as %s (job %s)\n", result.Documents[i].Name, result.Documents[i].ID, job.ID)
		}
		jobs = append(jobs, &job)
	}
	for _, u := range result.Skipped {
		cmd.Println(mutedStyle.Render("Skipped " + u + " (already ingested)"))
	}
	return jobs, err
}

// ingestRequests expands args into one request per document.
func ingestRequests(cmd *cobra.Command, args []string) ([]driving.IngestRequest, error) {
	base := driving.IngestRequest{KnowledgeBaseID: ingestFlags.kb, MIMEType: ingestFlags.mimeType}

	var requests []driving.IngestRequest
	if ingestFlags.url != "" && !ingestFlags.crawl {
		req := base
		req.URL = ingestFlags.url
		req.Name = ingestFlags.name
		requests = append(requests, req)
	}

	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinSize))
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			req := base
			req.Data = data
			req.Name = ingestFlags.name
			if req.Name == "" {
				req.Name = "stdin"
			}
			requests = append(requests, req)
			continue
		}

		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		paths, err := expandPath(abs)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			req := base
			req.Path = p
			req.Name = filepath.Base(p)
			requests = append(requests, req)
		}
	}
	return requests, nil
}

// expandPath returns arg itself for files, and every supported file below
// arg for directories. Hidden entries are skipped.
func expandPath(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	var paths []string
	err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != arg && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && extractors.TypeByExtension(path) != "" {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// streamProgress prints job updates until the returned stop func is called.
func streamProgress(cmd *cobra.Command) func() {
	events, unsubscribe := eventSource.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := make(map[string]domain.ProgressEvent)
		for e := range events {
			prev, seen := last[e.JobID]
			if seen && prev.Status == e.Status && e.Progress-prev.Progress < 25 && !e.Status.IsTerminal() {
				continue
			}
			last[e.JobID] = e
			cmd.Println(jobLine(domain.ProcessingJob{
				DocumentID:      e.DocumentID,
				DocumentName:    e.DocumentName,
				Status:          e.Status,
				Progress:        e.Progress,
				ProcessedChunks: e.ProcessedChunks,
				TotalChunks:     e.TotalChunks,
				Error:           e.Error,
			}))
		}
	}()
	return func() {
		unsubscribe()
		<-done
	}
}

func documentLabel(req driving.IngestRequest) string {
	switch {
	case req.Name != "":
		return req.Name
	case req.Path != "":
		return req.Path
	case req.URL != "":
		return req.URL
	default:
		return "document"
	}
}
