// Command goodseed serves and lists local experiment runs.
//
// Usage:
//
//	goodseed [dir]             start the local server (alias for serve)
//	goodseed serve [dir]       start the local server
//	goodseed list [dir]        list runs
//
// dir defaults to the projects directory under GOODSEED_HOME.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/goodseed-ai/goodseed/internal/catalog"
	"github.com/goodseed-ai/goodseed/internal/config"
	"github.com/goodseed-ai/goodseed/internal/server"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("GOODSEED_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger, args []string) error {
	// Load .env file if present (non-fatal; most setups won't have one).
	_ = godotenv.Load()

	cmd := "serve"
	if len(args) > 0 {
		switch args[0] {
		case "serve", "list":
			cmd = args[0]
			args = args[1:]
		case "-h", "--help", "help":
			printUsage()
			return nil
		}
	}

	switch cmd {
	case "serve":
		return cmdServe(ctx, logger, args)
	case "list":
		return cmdList(ctx, logger, args)
	}
	printUsage()
	return fmt.Errorf("unknown command %q", cmd)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: goodseed [serve|list] [--port PORT] [dir]

  serve   start the local HTTP server (default)
  list    list runs in the projects directory`)
}

func cmdServe(ctx context.Context, logger *slog.Logger, args []string) error {
	cfg, err := config.LoadServe()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	root := fs.Arg(0)
	if root == "" {
		root = config.ProjectsDir("")
	}
	if err := config.EnsureDir(root); err != nil {
		return fmt.Errorf("create projects directory: %w", err)
	}

	srv := server.New(server.Config{
		Root:         root,
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Version:      version,
	})

	logger.Info("goodseed server running",
		"url", fmt.Sprintf("http://localhost:%d", cfg.Port),
		"data_dir", root,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func cmdList(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	root := fs.Arg(0)
	if root == "" {
		root = config.ProjectsDir("")
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		fmt.Printf("projects directory does not exist: %s\n", root)
		return nil
	}

	runs, err := catalog.Scan(ctx, root, logger)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	byProject := make(map[string][]catalog.RunSummary)
	for _, r := range runs {
		byProject[r.Project] = append(byProject[r.Project], r)
	}
	projects := make([]string, 0, len(byProject))
	for p := range byProject {
		projects = append(projects, p)
	}
	sort.Strings(projects)

	for _, project := range projects {
		fmt.Printf("%s/\n", project)
		for _, r := range byProject[project] {
			fmt.Printf("  [%s] %s\n", r.Status, r.RunID)
			if r.ExperimentName != nil && *r.ExperimentName != "" {
				fmt.Printf("      name: %s\n", *r.ExperimentName)
			}
			created := "-"
			if r.CreatedAt != nil {
				created = *r.CreatedAt
				if len(created) > 19 {
					created = created[:19]
				}
			}
			fmt.Printf("      created: %s\n", created)
		}
		fmt.Println()
	}

	fmt.Printf("Total: %d run(s)\n", len(runs))
	return nil
}
