package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

var (
	jobsKB    string
	jobsLimit int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show processing jobs",
	Long: `Show active processing jobs, or the recent jobs of a knowledge base
including those finished by earlier runs.`,
	RunE: runJobs,
}

var jobStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show a single job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStatus,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsKB, "kb", "", "knowledge base id")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "maximum jobs to show")
	jobsCmd.AddCommand(jobStatusCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, _ []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	if jobsKB == "" {
		active := jobService.ActiveJobs()
		if len(active) == 0 {
			cmd.Println("No active jobs.")
			return nil
		}
		for i := range active {
			cmd.Println(jobLine(active[i]))
		}
		return nil
	}

	jobs, err := knowledgeBaseJobs(cmd, jobsKB)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}
	for i := range jobs {
		cmd.Println(jobLine(jobs[i]))
	}
	return nil
}

// knowledgeBaseJobs merges tracked jobs with persisted history, newest first.
func knowledgeBaseJobs(cmd *cobra.Command, kbID string) ([]domain.ProcessingJob, error) {
	seen := make(map[string]bool)
	var jobs []domain.ProcessingJob
	for _, j := range jobService.ListJobs(kbID) {
		seen[j.ID] = true
		jobs = append(jobs, j)
	}

	if jobHistory != nil {
		past, err := jobHistory.ListJobs(commandContext(cmd), kbID, jobsLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load job history: %w", err)
		}
		for _, j := range past {
			if !seen[j.ID] {
				jobs = append(jobs, j)
			}
		}
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if jobsLimit > 0 && len(jobs) > jobsLimit {
		jobs = jobs[:jobsLimit]
	}
	return jobs, nil
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	if jobService == nil {
		return errors.New("job service not configured")
	}

	job, err := jobService.GetJob(args[0])
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	cmd.Printf("Job:       %s\n", job.ID)
	cmd.Printf("Document:  %s (%s)\n", job.DocumentName, job.DocumentID)
	cmd.Printf("Status:    %s\n", statusLabel(string(job.Status)))
	cmd.Printf("Progress:  %s %d/%d chunks\n", progressBar(job.Progress), job.ProcessedChunks, job.TotalChunks)
	if job.Error != "" {
		cmd.Printf("Error:     %s\n", errorStyle.Render(job.Error))
	}
	return nil
}
