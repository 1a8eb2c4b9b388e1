package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/shiftops/internal/config"
	"github.com/sadopc/shiftops/internal/export"
	"github.com/sadopc/shiftops/internal/qr"
	"github.com/sadopc/shiftops/internal/store"
)

// openCLI parses the shared flags and opens the services with logs on stderr.
func openCLI(ctx context.Context, fs *flag.FlagSet, args []string) (*services, error) {
	cfg, err := config.ParseConfig(fs, args)
	if err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "stderr"
		cfg.LogFormat = "console"
		cfg.LogLevel = "warn"
	}
	return open(ctx, cfg, "shiftops")
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	date := fs.String("date", "", "Work date YYYY-MM-DD (default today)")
	ctx := context.Background()
	rt, err := openCLI(ctx, fs, args)
	if err != nil {
		return err
	}
	defer rt.Close()

	day := *date
	if day == "" {
		day = rt.tasks.Today()
	}
	n, err := rt.tasks.EnsureInstancesFor(ctx, day)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d task instances created\n", day, n)
	return nil
}

func runLabel(args []string) error {
	fs := flag.NewFlagSet("label", flag.ContinueOnError)
	locationID := fs.Int64("location", 0, "Location id (omit to list locations)")
	out := fs.String("out", "", "Output PNG path (default label-<id>.png)")
	size := fs.Int("size", 512, "Label size in pixels")
	ctx := context.Background()
	rt, err := openCLI(ctx, fs, args)
	if err != nil {
		return err
	}
	defer rt.Close()

	if *locationID == 0 {
		locs, err := rt.tasks.ListLocations(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTOKEN")
		for _, l := range locs {
			fmt.Fprintf(w, "%d\t%s\t%s\n", l.ID, l.Name, l.QRToken)
		}
		return w.Flush()
	}

	loc, err := rt.store.GetLocation(ctx, *locationID)
	if err != nil {
		return err
	}
	png, err := qr.Label(loc.QRToken, *size)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("label-%d.png", loc.ID)
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write label: %w", err)
	}
	fmt.Printf("%s: %s\n", loc.Name, path)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	date := fs.String("date", "", "Work date YYYY-MM-DD (default today)")
	format := fs.String("format", "csv", "Format: "+strings.Join(export.Formats, ", "))
	out := fs.String("out", "", "Output path without extension (default shiftops-<date>)")
	ctx := context.Background()
	rt, err := openCLI(ctx, fs, args)
	if err != nil {
		return err
	}
	defer rt.Close()

	day := *date
	if day == "" {
		day = rt.tasks.Today()
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return fmt.Errorf("invalid date %q", day)
	}
	r, err := export.Collect(ctx, rt.tasks, rt.store, rt.gate, day)
	if err != nil {
		return err
	}
	base := *out
	if base == "" {
		base = "shiftops-" + day
	}
	paths, err := export.Write(r, *format, base)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func runStaff(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: shiftops staff add|list|deactivate [flags]")
	}
	ctx := context.Background()
	switch args[0] {
	case "add":
		fs := flag.NewFlagSet("staff add", flag.ContinueOnError)
		code := fs.String("code", "", "Staff code (unique)")
		name := fs.String("name", "", "Display name")
		admin := fs.Bool("admin", false, "Grant admin rights")
		rt, err := openCLI(ctx, fs, args[1:])
		if err != nil {
			return err
		}
		defer rt.Close()
		if strings.TrimSpace(*code) == "" || strings.TrimSpace(*name) == "" {
			return fmt.Errorf("-code and -name are required")
		}
		role := store.RoleStaff
		if *admin {
			role = store.RoleAdmin
		}
		st, err := rt.store.CreateStaff(ctx, strings.TrimSpace(*code), strings.TrimSpace(*name), role)
		if err != nil {
			return err
		}
		rt.log.Info("staff added", zap.Int64("staff_id", st.ID), zap.String("role", string(role)))
		fmt.Printf("added %s (%s) id=%d\n", st.Name, st.Code, st.ID)
		return nil

	case "list":
		fs := flag.NewFlagSet("staff list", flag.ContinueOnError)
		all := fs.Bool("all", false, "Include deactivated staff")
		rt, err := openCLI(ctx, fs, args[1:])
		if err != nil {
			return err
		}
		defer rt.Close()
		staff, err := rt.store.ListStaff(ctx, *all)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCODE\tNAME\tROLE\tACTIVE")
		for _, st := range staff {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", st.ID, st.Code, st.Name, st.Role, st.Active)
		}
		return w.Flush()

	case "deactivate":
		fs := flag.NewFlagSet("staff deactivate", flag.ContinueOnError)
		code := fs.String("code", "", "Staff code")
		rt, err := openCLI(ctx, fs, args[1:])
		if err != nil {
			return err
		}
		defer rt.Close()
		st, err := rt.store.GetStaffByCode(ctx, *code)
		if err != nil {
			return err
		}
		if err := rt.store.DeactivateStaff(ctx, st.ID); err != nil {
			return err
		}
		fmt.Printf("deactivated %s\n", st.Name)
		return nil
	}
	return fmt.Errorf("unknown staff command %q", args[0])
}
