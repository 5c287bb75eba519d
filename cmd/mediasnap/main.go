// Command mediasnap runs the media snapshot engine and administers its
// archive.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/pauldequant/umbraco-media-snapshot-sub000/internal/logger"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/api"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/config"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/host"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/media"
	"github.com/pauldequant/umbraco-media-snapshot-sub000/pkg/server"
)

const usage = `mediasnap - versioned media snapshots

Usage:
  mediasnap <command> [flags] [args]

Commands:
  init                     Write a default config file
  serve                    Run the API, metrics endpoint and cleanup sweeper
  save <file>              Upload a file as a new or existing media item
  delete <media-id>        Delete a media item and its versions
  versions <media-id>      List the versions of a media item
  restore <media-id> <entry>
                           Restore a media item to an archived version
  pin <path>               Pin an archive entry (--unpin to release)
  note <path> <text>       Set the note of an archive entry ("" clears)
  sweep                    Apply the retention policy once
  stats                    Print archive storage statistics

Flags:
  --config <path>          Config file (default: $XDG_CONFIG_HOME/mediasnap/config.yaml)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "init":
		err = runInit(args)
	case "serve":
		err = runServe(ctx, args)
	case "save":
		err = runSave(ctx, args)
	case "delete":
		err = runDelete(ctx, args)
	case "versions":
		err = runVersions(ctx, args)
	case "restore":
		err = runRestore(ctx, args)
	case "pin":
		err = runPin(ctx, args)
	case "note":
		err = runNote(ctx, args)
	case "sweep":
		err = runSweep(ctx, args)
	case "stats":
		err = runStats(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ============================================================================
// Helpers
// ============================================================================

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	return fs, configPath
}

// openApp loads the configuration and builds a one-shot engine.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, false)
}

func parseMediaID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid media id %q", s)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ============================================================================
// Commands
// ============================================================================

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	path := fs.String("config", "", "Write to this path instead of the default location")
	_ = fs.Parse(args)

	target := *path
	if target == "" {
		target = config.GetDefaultConfigPath()
	}
	if err := config.InitConfigToPath(target, *force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", target)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("serve")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(cfg.Server.ShutdownTimeout)

	if cfg.Server.API.Enabled {
		handler, err := api.NewHandler(api.Deps{
			Coordinator: a.coord,
			Stats:       a.stats,
			Cleaner:     a.sweeper,
			Limiter:     cfg.APILimiter(),
			Metrics:     a.metrics.API,
		})
		if err != nil {
			return err
		}
		if err := srv.Add(api.NewServer(handler, cfg.APIServerConfig())); err != nil {
			return err
		}
	}
	if a.metrics.Server != nil {
		if err := srv.Add(a.metrics.Server); err != nil {
			return err
		}
	}
	if err := srv.Add(server.Background("sweeper", a.sweeper)); err != nil {
		return err
	}

	logger.Info("mediasnap starting: storage=%s media=%s retention=%d versions/%d days",
		cfg.Storage.Type, cfg.Media.Type, cfg.Snapshot.MaxVersions, cfg.Snapshot.MaxAgeDays)

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runSave(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("save")
	id := fs.Int("id", 0, "Existing media id (0 creates a new item)")
	contentType := fs.String("type", "File", "Content type alias of a new item")
	name := fs.String("name", "", "Display name")
	uploader := fs.String("uploader", "", "Uploader display name")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mediasnap save [flags] <file>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	rec := &media.Record{ContentTypeAlias: *contentType}
	if *id != 0 {
		rec, err = a.records.Get(ctx, *id)
		if err != nil {
			return err
		}
	}
	if *name != "" {
		rec.Name = *name
	}
	if *uploader != "" {
		rec.UploaderName = *uploader
	}

	res, err := a.dispatcher.Save(ctx, rec, &host.Upload{
		Filename: filepath.Base(fs.Arg(0)),
		Content:  bytes.NewReader(data),
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runDelete(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("delete")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mediasnap delete <media-id>")
	}
	id, err := parseMediaID(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.dispatcher.Delete(ctx, id)
}

func runVersions(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("versions")
	page := fs.Int("page", 1, "Page number (1-based)")
	pageSize := fs.Int("page-size", 0, "Entries per page (default 20, max 200)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mediasnap versions [flags] <media-id>")
	}
	id, err := parseMediaID(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.coord.ListVersions(ctx, id, *page, *pageSize)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runRestore(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("restore")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mediasnap restore <media-id> <entry>")
	}
	id, err := parseMediaID(fs.Arg(0))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.coord.Restore(ctx, id, fs.Arg(1)); err != nil {
		return err
	}
	fmt.Printf("Restored media %d from %s\n", id, fs.Arg(1))
	return nil
}

func runPin(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("pin")
	unpin := fs.Bool("unpin", false, "Release the pin instead")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mediasnap pin [--unpin] <folder/entry>")
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.coord.SetPinned(ctx, fs.Arg(0), !*unpin)
}

func runNote(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("note")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mediasnap note <folder/entry> <text>")
	}

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.coord.SetNote(ctx, fs.Arg(0), fs.Arg(1))
}

func runSweep(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("sweep")
	dryRun := fs.Bool("dry-run", false, "Report what would be deleted without deleting")
	_ = fs.Parse(args)

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	run := a.sweeper.RunNow
	if *dryRun {
		run = a.sweeper.DryRun
	}
	stats, err := run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(stats.Summary())
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("stats")
	asJSON := fs.Bool("json", false, "Print the full statistics as JSON")
	_ = fs.Parse(args)

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.stats.GetOrCompute(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(stats)
	}
	fmt.Println(stats.Summary())
	return nil
}
