package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/config"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/executor"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/fetch"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/lock"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/model"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/progress"
	"github.com/karaalv/kenya-ecitizen-services-dataset/internal/scheduler"
)

const version = "1.0.0"

func main() {
	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "run":
		runPipeline()
	case "status":
		runStatus(os.Args[2:])
	case "version":
		fmt.Printf("ecitizen %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func runPipeline() {
	cfg := config.Load()
	logger := log.New(os.Stderr, "[ecitizen] ", log.LstdFlags)
	runID := uuid.NewString()
	logger.Printf("run %s starting (data dir %s)", runID, cfg.DataDir)

	runLock := lock.New(cfg.LockPath())
	if err := runLock.TryAcquire(); err != nil {
		fmt.Fprintf(os.Stderr, "another run appears to be active: %v\n", err)
		os.Exit(1)
	}
	defer runLock.Release()

	store, err := progress.NewStore(cfg.StatePath(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load progress state: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := fetch.NewLimiter(cfg.Rate, cfg.Retry)
	client := fetch.NewClient(cfg, limiter, logger)
	exec := executor.New(cfg, client, logger)
	sched := scheduler.New(store, logger)

	if err := drive(ctx, sched, exec, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Printf("run %s interrupted; progress saved, rerun to resume", runID)
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "run %s aborted: %v\n", runID, err)
		os.Exit(1)
	}
	logger.Printf("run %s complete", runID)
}

// drive is the main loop: ask the scheduler for the next task, execute
// it, fold the result back. Any fatal scheduler error ends the run;
// state is already persisted up to the last applied result.
func drive(ctx context.Context, sched *scheduler.Scheduler, exec *executor.Executor, logger *log.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		task, err := sched.NextTask()
		if err != nil {
			return err
		}
		if task == nil {
			return nil
		}
		logger.Printf("task: %s", task.Log())
		result := exec.Execute(ctx, *task)
		if err := sched.ApplyResult(result); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: ecitizen status [--json]\n", a)
			os.Exit(1)
		}
	}

	cfg := config.Load()
	logger := log.New(os.Stderr, "[ecitizen] ", 0)
	store, err := progress.NewStore(cfg.StatePath(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load progress state: %v\n", err)
		os.Exit(1)
	}
	state := store.State()

	if jsonOutput {
		out, err := json.MarshalIndent(state, "", "    ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode state: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	printStep := func(name string, step model.StepCheck) {
		fmt.Printf("  %-20s scraped=%-5v processed=%v\n", name, step.Scraped, step.Processed)
	}
	fmt.Println("pipeline progress:")
	printStep("faq", state.FAQ)
	printStep("agencies list", state.AgenciesList)
	printStep("ministries list", state.MinistriesList)
	printStep("ministry pages", state.MinistryPages)
	printStep("ministry services", state.MinistryServices)
	fmt.Printf("  %-20s done=%v\n", "finalisation", state.FinalisationChecks)

	complete := 0
	for _, m := range state.Ministries {
		if m.Complete {
			complete++
		}
	}
	fmt.Printf("  ministries: %d discovered, %d complete\n", len(state.Ministries), complete)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ecitizen %s — Kenya eCitizen services dataset scraper

Usage: ecitizen [command]

Commands:
  run               Run the scraping pipeline (default), resuming
                    from the persisted state if present
  status [--json]   Show pipeline progress
  version           Show version
  help              Show this help

Environment:
  ECITIZEN_CONFIG      Path to a YAML config file
  ECITIZEN_DATA_DIR    Override the data directory
  ECITIZEN_STATE_FILE  Override the state file name

`, version)
}
