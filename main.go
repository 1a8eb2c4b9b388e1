package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sadopc/shiftops/internal/api"
	"github.com/sadopc/shiftops/internal/config"
	"github.com/sadopc/shiftops/internal/scheduler"
	"github.com/sadopc/shiftops/internal/tui"
)

const usage = `usage: shiftops <command> [flags]

commands:
  tui        interactive terminal (default)
  serve      HTTP API and background jobs
  generate   create task instances for a day
  label      render a location's QR label as PNG
  export     write a day's report (csv, json, xlsx)
  staff      add, list or deactivate staff

Run "shiftops <command> -h" for the flags of a command.
`

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cmd, args := "tui", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "tui":
		err = runTUI(args)
	case "serve":
		err = runServe(args)
	case "generate":
		err = runGenerate(args)
	case "label":
		err = runLabel(args)
	case "export":
		err = runExport(args)
	case "staff":
		err = runStaff(args)
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	exportDir := fs.String("export-dir", "", "Directory for exports (default home)")
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return err
	}
	// Log lines written to stdout would tear the screen.
	if cfg.LogFile == "" {
		dbPath, err := resolveDBPath(cfg)
		if err != nil {
			return err
		}
		cfg.LogFile = filepath.Join(filepath.Dir(dbPath), "shiftops.log")
	}

	rt, err := open(context.Background(), cfg, "shiftops-tui")
	if err != nil {
		return err
	}
	defer rt.Close()

	app := tui.NewApp(tui.Deps{
		Service:   rt.tasks,
		Gate:      rt.gate,
		Store:     rt.store,
		Logger:    rt.log,
		ExportDir: *exportDir,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := open(ctx, cfg, "shiftops")
	if err != nil {
		return err
	}
	defer rt.Close()

	sched := scheduler.New(rt.tasks, rt.loc, cfg.SweepInterval, true, rt.log)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := api.NewServer(rt.tasks, rt.gate, rt.store, rt.photos, rt.log).App()
	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	rt.log.Info("shutting down")
	return app.Shutdown()
}
