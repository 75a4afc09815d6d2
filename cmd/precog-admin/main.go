package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/bootstrap"
	"github.com/croutons-ai/precog/internal/bus"
	"github.com/croutons-ai/precog/internal/data"
	"github.com/croutons-ai/precog/internal/domain/model"
	apperrors "github.com/croutons-ai/precog/internal/errors"
	"github.com/croutons-ai/precog/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = time.Minute

	// dlqScanLimit bounds how many dead letters a single lookup walks.
	dlqScanLimit = 1000
	// dlqRequeueBatch is the page size for requeue -all.
	dlqRequeueBatch = 100
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"dlq": {
			name:        "dlq",
			description: "Inspect or requeue dead-lettered jobs (dlq <list|requeue>)",
			run:         runDLQ,
		},
		"status": {
			name:        "status",
			description: "Show the publish status report for a domain",
			run:         runStatus,
		},
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"stream": {
			name:        "stream",
			description: "Inspect the job stream and consumer group (stream info)",
			run:         runStream,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: precog-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}

	all := commands()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writef(os.Stdout, "  %-12s %s\n", all[name].name, all[name].description); err != nil {
			return err
		}
	}
	return nil
}

type dlqListOptions struct {
	Limit int
}

type dlqRequeueOptions struct {
	ID  string
	All bool
}

type statusOptions struct {
	Domain string
	JSON   bool
}

type migrateOptions struct {
	Timeout time.Duration
}

func runDLQ(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: precog-admin dlq <list|requeue> [flags]")
	}

	switch args[0] {
	case "list":
		return runDLQList(cmdCtx, args[1:])
	case "requeue":
		return runDLQRequeue(cmdCtx, args[1:])
	default:
		return fmt.Errorf("unknown dlq action %q (valid actions: list, requeue)", args[0])
	}
}

func runDLQList(cmdCtx *commandContext, args []string) error {
	opts, err := parseDLQListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	redisClient, streamBus, err := connectBus(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	entries, err := streamBus.ReadDLQ(ctx, int64(opts.Limit))
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return writeln(os.Stdout, "Dead-letter stream is empty.")
	}

	return renderDLQTable(entries)
}

func renderDLQTable(entries []bus.DeadLetterEntry) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ENTRY\tJOB\tPRECOG\tTASK\tRETRIES\tFAILED\tERROR"); err != nil {
		return fmt.Errorf("write dlq header row: %w", err)
	}

	for _, entry := range entries {
		rec := entry.Record
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			entry.ID,
			rec.JobID,
			rec.Precog,
			rec.Task,
			rec.Retries,
			rec.FailedAt.Format(time.RFC3339),
			truncateError(rec.Error),
		); err != nil {
			return fmt.Errorf("write dlq entry: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush dlq table: %w", err)
	}
	return nil
}

// truncateError keeps table rows readable; full messages stay in the stream.
func truncateError(msg string) string {
	const maxLen = 80
	msg = strings.ReplaceAll(msg, "\n", " ")
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen-3] + "..."
}

func runDLQRequeue(cmdCtx *commandContext, args []string) error {
	opts, err := parseDLQRequeueFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	// Requeue also resets the job row to pending, so it needs the database
	// on top of the stream.
	db, redisClient, streamBus, err := connectStreamInfra(cmdCtx, true)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	jobs := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})

	if opts.All {
		requeued, dropped, requeueErr := requeueAllDeadLetters(ctx, cmdCtx.Logger, streamBus, jobs)
		if requeueErr != nil {
			return requeueErr
		}
		if dropped > 0 {
			return writef(os.Stdout, "Requeued %d dead letter(s), dropped %d stale one(s)\n", requeued, dropped)
		}
		return writef(os.Stdout, "Requeued %d dead letter(s)\n", requeued)
	}

	return requeueDeadLetterByID(ctx, streamBus, jobs, opts.ID)
}

// prepareJobForRequeue returns the job to pending so the worker will accept
// the redelivery; a dead-lettered job sits in error status, which the runner
// refuses to start. Reports false for stale entries whose job is missing or
// already settled some other way, so callers drop them instead of cycling
// them forever. A job already in pending is a previous requeue that crashed
// between the reset and the enqueue; finish it.
func prepareJobForRequeue(ctx context.Context, jobs *data.JobRepo, jobID string) (bool, error) {
	_, err := jobs.ResetForRequeue(ctx, jobID)
	switch {
	case err == nil:
		return true, nil
	case apperrors.IsNotFound(err):
		return false, nil
	case !apperrors.IsConflict(err):
		return false, err
	}

	job, err := jobs.Get(ctx, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return job.Status == model.JobStatusPending, nil
}

func requeueAllDeadLetters(ctx context.Context, logger *slog.Logger, streamBus *bus.Bus, jobs *data.JobRepo) (int, int, error) {
	requeued, dropped := 0, 0
	for {
		entries, err := streamBus.ReadDLQ(ctx, dlqRequeueBatch)
		if err != nil {
			return requeued, dropped, err
		}
		if len(entries) == 0 {
			return requeued, dropped, nil
		}
		for _, entry := range entries {
			ok, prepErr := prepareJobForRequeue(ctx, jobs, entry.Record.JobID)
			if prepErr != nil {
				return requeued, dropped, fmt.Errorf("reset job %s: %w", entry.Record.JobID, prepErr)
			}
			if !ok {
				logger.WarnContext(ctx, "dropping stale dead letter",
					"entry_id", entry.ID, "job_id", entry.Record.JobID)
				if dropErr := streamBus.DropDLQ(ctx, entry.ID); dropErr != nil {
					return requeued, dropped, dropErr
				}
				dropped++
				continue
			}
			if _, err := streamBus.RequeueDLQ(ctx, entry); err != nil {
				return requeued, dropped, fmt.Errorf("requeue dead letter %s: %w", entry.ID, err)
			}
			requeued++
		}
	}
}

func requeueDeadLetterByID(ctx context.Context, streamBus *bus.Bus, jobs *data.JobRepo, id string) error {
	entries, err := streamBus.ReadDLQ(ctx, dlqScanLimit)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.ID != id {
			continue
		}
		ok, prepErr := prepareJobForRequeue(ctx, jobs, entry.Record.JobID)
		if prepErr != nil {
			return fmt.Errorf("reset job %s: %w", entry.Record.JobID, prepErr)
		}
		if !ok {
			if dropErr := streamBus.DropDLQ(ctx, entry.ID); dropErr != nil {
				return dropErr
			}
			return writef(os.Stdout, "Dead letter %s is stale (job %s already settled); dropped\n",
				id, entry.Record.JobID)
		}
		newID, requeueErr := streamBus.RequeueDLQ(ctx, entry)
		if requeueErr != nil {
			return fmt.Errorf("requeue dead letter %s: %w", id, requeueErr)
		}
		return writef(os.Stdout, "Requeued dead letter %s as stream entry %s\n", id, newID)
	}

	return fmt.Errorf("dead letter %q not found in first %d entries", id, dlqScanLimit)
}

func runStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatusFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		repoCfg := data.RepoConfig{Logger: cmdCtx.Logger}
		publisher := service.MustNewPublisherService(service.PublisherServiceOptions{
			Facts:     data.NewFactRepo(db, repoCfg),
			Snapshots: data.NewSnapshotRepo(db, repoCfg),
			Markdown:  data.NewMarkdownRepo(db, repoCfg),
			Domains:   data.NewDomainRepo(db, repoCfg),
			Logger:    cmdCtx.Logger,
		})

		report, statusErr := publisher.Status(ctx, opts.Domain)
		if statusErr != nil {
			return statusErr
		}

		if opts.JSON {
			encoded, marshalErr := json.MarshalIndent(report, "", "  ")
			if marshalErr != nil {
				return fmt.Errorf("encode status report: %w", marshalErr)
			}
			return writeln(os.Stdout, string(encoded))
		}

		return renderStatusTable(report)
	})
}

func renderStatusTable(report *service.StatusReport) error {
	lastIngested := "-"
	if report.LastIngestedAt != nil {
		lastIngested = report.LastIngestedAt.Format(time.RFC3339)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value string
	}{
		{"Domain", report.Domain},
		{"Verified", fmt.Sprintf("%t", report.Verified)},
		{"Protocol version", report.ProtocolVersion},
		{"Last ingested", lastIngested},
		{"QA tier", string(report.QA.Tier)},
		{"QA pass", fmt.Sprintf("%t", report.QA.Pass)},
		{"Anchor coverage (text)", fmt.Sprintf("%.3f", report.QA.AnchorCoverageText)},
		{"Facts total", fmt.Sprintf("%d", report.Counts.FactsTotal)},
		{"Facts (text extraction)", fmt.Sprintf("%d", report.Counts.FactsTextExtraction)},
		{"Facts (structured data)", fmt.Sprintf("%d", report.Counts.FactsStructuredData)},
		{"Pages", fmt.Sprintf("%d", report.Counts.Pages)},
		{"Entities", fmt.Sprintf("%d", report.Counts.Entities)},
		{"Markdown version", report.Versions.Markdown},
		{"Facts version", report.Versions.Facts},
		{"Graph version", report.Versions.Graph},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row.label, row.value); err != nil {
			return fmt.Errorf("write status row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush status table: %w", err)
	}
	return nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func runStream(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: precog-admin stream <info>")
	}
	if args[0] != "info" {
		return fmt.Errorf("unknown stream action %q (valid actions: info)", args[0])
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	redisClient, streamBus, err := connectBus(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	info, err := streamBus.PendingInfo(ctx)
	if err != nil {
		return err
	}

	return renderStreamInfo(&cmdCtx.Config.Worker, info)
}

func renderStreamInfo(cfg *config.WorkerConfig, info *bus.Info) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		value string
	}{
		{"Stream", cfg.Stream},
		{"Stream length", fmt.Sprintf("%d", info.StreamLength)},
		{"DLQ stream", cfg.DLQStream},
		{"DLQ length", fmt.Sprintf("%d", info.DLQLength)},
		{"Group", cfg.Group},
		{"Pending count", fmt.Sprintf("%d", info.PendingCount)},
	}
	if info.PendingConsumer != "" {
		rows = append(rows, struct {
			label string
			value string
		}{"Pending consumers", info.PendingConsumer})
	}

	for _, row := range rows {
		if err := writef(tw, "%s\t%s\n", row.label, row.value); err != nil {
			return fmt.Errorf("write stream info row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush stream info table: %w", err)
	}
	return nil
}

func parseDLQListFlags(args []string) (dlqListOptions, error) {
	fs := flag.NewFlagSet("dlq list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := dlqListOptions{Limit: 20}
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum number of dead letters to list")

	if err := fs.Parse(args); err != nil {
		return dlqListOptions{}, err
	}

	if opts.Limit <= 0 {
		return dlqListOptions{}, errors.New("--limit must be greater than zero")
	}

	return opts, nil
}

func parseDLQRequeueFlags(args []string) (dlqRequeueOptions, error) {
	fs := flag.NewFlagSet("dlq requeue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts dlqRequeueOptions
	fs.StringVar(&opts.ID, "id", "", "Dead-letter stream entry id to requeue")
	fs.BoolVar(&opts.All, "all", false, "Requeue every dead letter")

	if err := fs.Parse(args); err != nil {
		return dlqRequeueOptions{}, err
	}

	opts.ID = strings.TrimSpace(opts.ID)
	if opts.All == (opts.ID != "") {
		return dlqRequeueOptions{}, errors.New("exactly one of --id or --all is required")
	}

	return opts, nil
}

func parseStatusFlags(args []string) (statusOptions, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts statusOptions
	fs.BoolVar(&opts.JSON, "json", false, "Print the raw JSON status report")

	if err := fs.Parse(args); err != nil {
		return statusOptions{}, err
	}

	opts.Domain = strings.TrimSpace(fs.Arg(0))
	if opts.Domain == "" {
		return statusOptions{}, errors.New("usage: precog-admin status [-json] <domain>")
	}

	return opts, nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{
		Timeout: defaultMigrationTimeout,
	}

	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}

	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}

	return opts, nil
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(cmdCtx.Config.Postgres, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
