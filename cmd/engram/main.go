// Command engram is the CLI client for the engramd daemon: it inspects and
// manages jobs, resolves reviews and conflicts, runs tool preflight checks,
// and drives the simulated-insert testing hook over the daemon's REST
// surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"engram/internal/jobs"
	"engram/internal/logging"
	"engram/internal/preflight"
	"engram/internal/store"
	"engram/internal/textutil"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var bindFlag string
	var configFlag string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "engram",
		Short:         "Engram CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&bindFlag, "bind", "", "Daemon API address (host:port)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")

	ctx := newCommandContext(&bindFlag, &configFlag, &jsonOutput)

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newTitlesCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newSimulateInsertCommand(ctx))
	rootCmd.AddCommand(newEjectCommand(ctx))
	rootCmd.AddCommand(newToolsCommand(ctx))

	return rootCmd
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().status(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon: %s\nJobs: %d\n", resp.Status, resp.JobsTotal)
			return nil
		},
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := ctx.client().listJobs(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.DriveID,
					string(job.State),
					string(job.ContentType),
					job.DetectedTitle,
					fmt.Sprintf("%d%%", job.ProgressPct),
				})
			}
			table := renderTable(
				[]string{"ID", "Drive", "State", "Type", "Title", "Progress"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			job, err := ctx.client().getJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, job)
			}
			printJob(cmd, job)
			return nil
		},
	}
}

func printJob(cmd *cobra.Command, job store.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job #%d on %s\n", job.ID, job.DriveID)
	fmt.Fprintf(out, "  State:        %s\n", job.State)
	fmt.Fprintf(out, "  Label:        %s\n", job.VolumeLabel)
	fmt.Fprintf(out, "  Content type: %s\n", job.ContentType)
	if job.DetectedTitle != "" {
		fmt.Fprintf(out, "  Detected:     %s\n", job.DetectedTitle)
	}
	if job.DetectedSeason != nil {
		fmt.Fprintf(out, "  Season:       %d\n", *job.DetectedSeason)
	}
	if job.ProgressPct > 0 {
		fmt.Fprintf(out, "  Progress:     %d%% %s\n", job.ProgressPct, job.ProgressSpeed)
	}
	if job.ReviewReason != "" {
		fmt.Fprintf(out, "  Review:       %s\n", job.ReviewReason)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:        %s\n", job.ErrorMessage)
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.client().cancelJob(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job #%d cancelled\n", id)
			return nil
		},
	}
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a finished job and its titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.client().deleteJob(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job #%d deleted\n", id)
			return nil
		},
	}
}

func newTitlesCommand(ctx *commandContext) *cobra.Command {
	titlesCmd := &cobra.Command{
		Use:   "titles",
		Short: "Inspect a job's titles",
	}
	titlesCmd.AddCommand(&cobra.Command{
		Use:   "list <job-id>",
		Short: "List one job's titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			list, err := ctx.client().listTitles(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No titles")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, title := range list {
				episode := title.MatchedEpisode
				if episode == "" && title.IsExtra {
					episode = "extra"
				}
				size := title.ExpectedSize
				if title.ActualSize > 0 {
					size = title.ActualSize
				}
				rows = append(rows, []string{
					strconv.FormatInt(title.ID, 10),
					strconv.Itoa(title.TitleIndex),
					formatDuration(title.DurationSeconds),
					logging.FormatBytes(size),
					string(title.State),
					episode,
					title.OrganizedTo,
				})
			}
			table := renderTable(
				[]string{"ID", "Index", "Duration", "Size", "State", "Episode", "Destination"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	})
	return titlesCmd
}

func formatDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve jobs and titles waiting on a decision",
	}
	resolveCmd.AddCommand(newResolveNameCommand(ctx))
	resolveCmd.AddCommand(newResolveEpisodesCommand(ctx))
	resolveCmd.AddCommand(newResolveConflictCommand(ctx))
	return resolveCmd
}

func newResolveNameCommand(ctx *commandContext) *cobra.Command {
	var year int
	var titleIndex int
	cmd := &cobra.Command{
		Use:   "name <job-id> <name>",
		Short: "Supply the canonical name (and optionally year) for a job in review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resolution := jobs.ReviewResolution{
				Choice: jobs.ReviewChoiceNameYear,
				Name:   args[1],
				Year:   year,
			}
			if cmd.Flags().Changed("title-index") {
				resolution.SelectedTitleIndex = &titleIndex
			}
			job, err := ctx.client().resolveReview(cmd.Context(), id, resolution)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job #%d resumed in state %s\n", job.ID, job.State)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Release year")
	cmd.Flags().IntVar(&titleIndex, "title-index", 0, "Canonical title index on an ambiguous-movie disc")
	return cmd
}

func newResolveEpisodesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "episodes <job-id> <index=SxxEyy>...",
		Short: "Assign episode codes to titles the matcher couldn't place",
		Long:  "Each assignment is <title-index>=<SxxEyy>, or <title-index>=extra to file the title as a bonus feature.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			episodeMap := make(map[int]string, len(args)-1)
			for _, assignment := range args[1:] {
				index, code, found := strings.Cut(assignment, "=")
				if !found {
					return fmt.Errorf("bad assignment %q, want <index>=<SxxEyy>", assignment)
				}
				n, err := strconv.Atoi(index)
				if err != nil {
					return fmt.Errorf("bad title index %q: %w", index, err)
				}
				episodeMap[n] = code
			}
			job, err := ctx.client().resolveReview(cmd.Context(), id, jobs.ReviewResolution{
				Choice:     jobs.ReviewChoiceEpisodeMap,
				EpisodeMap: episodeMap,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job #%d resumed in state %s\n", job.ID, job.State)
			return nil
		},
	}
}

func newResolveConflictCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "conflict <title-id> <overwrite|rename|skip>",
		Short: "Resolve a naming conflict the organizer left pending",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			choice := store.ConflictResolution(strings.ToLower(args[1]))
			switch choice {
			case store.ConflictOverwrite, store.ConflictRename, store.ConflictSkip:
			default:
				return fmt.Errorf("unsupported conflict choice %q", args[1])
			}
			if err := ctx.client().resolveConflict(cmd.Context(), id, choice); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Title #%d resolved (%s)\n", id, choice)
			return nil
		},
	}
}

func newSimulateInsertCommand(ctx *commandContext) *cobra.Command {
	var contentType string
	var simulateRipping bool
	cmd := &cobra.Command{
		Use:   "simulate-insert <drive> <volume-label>",
		Short: "Simulate a disc insertion (testing hook)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().simulateInsert(cmd.Context(), args[0], args[1], contentType, simulateRipping)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job #%d created on %s\n", job.ID, job.DriveID)
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "Scripted disc shape: TV or MOVIE")
	cmd.Flags().BoolVar(&simulateRipping, "simulate-ripping", false, "Serve the scan and rip from the built-in simulator")
	return cmd
}

func newEjectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "eject <drive>",
		Short: "Cancel the drive's active job and open its tray",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.client().eject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ejected %s\n", args[0])
			return nil
		},
	}
}

func newToolsCommand(ctx *commandContext) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Pre-flight checks on external binaries",
	}
	toolsCmd.AddCommand(&cobra.Command{
		Use:   "detect",
		Short: "Detect the configured rip tool and ffmpeg",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := ctx.client().detectTools(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, statuses)
			}
			printToolStatuses(cmd, statuses)
			return nil
		},
	})
	toolsCmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Validate one tool binary by path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.client().validateTool(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, status)
			}
			printToolStatus(cmd, status)
			return nil
		},
	})
	return toolsCmd
}

func printToolStatuses(cmd *cobra.Command, statuses []preflight.Status) {
	for _, status := range statuses {
		printToolStatus(cmd, status)
	}
}

func printToolStatus(cmd *cobra.Command, status preflight.Status) {
	mark := textutil.Ternary(status.Available, "ok", "missing")
	line := fmt.Sprintf("%-10s %-8s %s", status.Name, mark, status.Command)
	if status.Detail != "" {
		line += " (" + status.Detail + ")"
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad id %q", raw)
	}
	return id, nil
}
