package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mmcdole/boxcat/internal/boxcat"
	"github.com/mmcdole/boxcat/internal/config"
	"github.com/mmcdole/boxcat/internal/domain"
	"github.com/mmcdole/boxcat/internal/log"
	"github.com/mmcdole/boxcat/internal/store"
	"github.com/mmcdole/boxcat/internal/sync"
	"github.com/mmcdole/boxcat/internal/vfs"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `Usage: boxcat <command> [flags]

Commands:
  sync         synchronize a title's bonus content
  launchparam  fetch a title's launch parameter payload
  status       show service status and per-title events
  clear        delete a title's synchronized content or the download cache
  config       show the effective configuration, or save it to disk
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if os.Args[1] == "-v" || os.Args[1] == "-version" || os.Args[1] == "--version" {
		fmt.Printf("boxcat %s\n", Version)
		return
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// stderrDisplay surfaces actionable download failures on the terminal.
type stderrDisplay struct{}

func (stderrDisplay) ShowError(message, detail string) {
	fmt.Fprintf(os.Stderr, "%s\n%s\n", message, detail)
}

func run(command string, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.Setup(&cfg.Logging)
	if err != nil {
		// Fall back to a discard logger if file logging fails
		logger = log.Discard()
	}
	slog.SetDefault(logger)

	logger.Info("starting boxcat", "version", Version, "command", command)

	client := boxcat.NewClient(cfg, logger)

	switch command {
	case "status":
		return runStatus(client)
	case "config":
		return runConfig(cfg, args)
	case "sync", "launchparam", "clear":
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	journal, err := store.Open(cfg.Cache.Dir)
	if err != nil {
		return fmt.Errorf("failed to open sync journal: %w", err)
	}
	defer journal.Close()

	dirGetter := func(titleID uint64) (*vfs.Dir, error) {
		return vfs.OSDir(filepath.Join(cfg.Sync.TargetDir, fmt.Sprintf("%016X", titleID)))
	}

	svc := sync.NewService(client, dirGetter, stderrDisplay{}, journal, cfg.Sync.LocalOnly, logger)
	defer svc.Close()

	switch command {
	case "sync":
		return runSync(svc, args)
	case "launchparam":
		return runLaunchParam(svc, args)
	case "clear":
		return runClear(svc, cfg, args)
	}
	return nil
}

func runConfig(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	saveArg := fs.Bool("save", false, "write the effective configuration to the config file")
	fs.Parse(args)

	if *saveArg {
		if err := config.SaveConfig(cfg); err != nil {
			return err
		}
		fmt.Println("Configuration saved.")
		return nil
	}

	fmt.Printf("server url:            %s\n", cfg.Server.URL)
	fmt.Printf("data timeout:          %ds\n", cfg.Server.DataTimeout)
	fmt.Printf("launch param timeout:  %ds\n", cfg.Server.LaunchParamTimeout)
	fmt.Printf("cache dir:             %s\n", cfg.Cache.Dir)
	fmt.Printf("target dir:            %s\n", cfg.Sync.TargetDir)
	fmt.Printf("local only:            %t\n", cfg.Sync.LocalOnly)
	fmt.Printf("log file:              %s (%s)\n", cfg.Logging.File, cfg.Logging.Level)
	return nil
}

func runSync(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	titleArg := fs.String("title", "", "title id (16 hex digits)")
	buildArg := fs.String("build", "", "build id (16 hex digits)")
	dirArg := fs.String("dir", "", "synchronize only the named subtree")
	fs.Parse(args)

	title, err := parseTitle(*titleArg, *buildArg)
	if err != nil {
		return err
	}

	done := make(chan bool, 1)
	callback := domain.CompletionCallback(func(success bool) { done <- success })

	var accepted bool
	if *dirArg == "" {
		accepted = svc.Synchronize(title, callback)
	} else {
		accepted = svc.SynchronizeDirectory(title, *dirArg, callback)
	}
	if !accepted {
		return fmt.Errorf("synchronization request rejected")
	}

	if !<-done {
		return fmt.Errorf("synchronization of %s failed", title)
	}
	fmt.Printf("Synchronized %s\n", title)
	return nil
}

func runLaunchParam(svc *sync.Service, args []string) error {
	fs := flag.NewFlagSet("launchparam", flag.ExitOnError)
	titleArg := fs.String("title", "", "title id (16 hex digits)")
	buildArg := fs.String("build", "", "build id (16 hex digits)")
	outArg := fs.String("out", "", "write payload to file instead of stdout")
	fs.Parse(args)

	title, err := parseTitle(*titleArg, *buildArg)
	if err != nil {
		return err
	}

	data, ok := svc.GetLaunchParameter(title)
	if !ok {
		return fmt.Errorf("no launch parameter available for %s", title)
	}

	if *outArg != "" {
		return os.WriteFile(*outArg, data, 0644)
	}
	os.Stdout.Write(data)
	return nil
}

func runClear(svc *sync.Service, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	titleArg := fs.String("title", "", "title id (16 hex digits)")
	cacheArg := fs.Bool("cache", false, "delete the download cache instead of a title's content")
	fs.Parse(args)

	if *cacheArg {
		if err := config.ClearCache(cfg); err != nil {
			return err
		}
		fmt.Println("Download cache cleared.")
		if *titleArg == "" {
			return nil
		}
	}

	titleID, err := parseID(*titleArg)
	if err != nil {
		return fmt.Errorf("invalid title id: %w", err)
	}

	if !svc.Clear(titleID) {
		return fmt.Errorf("failed to clear content for %016X", titleID)
	}
	fmt.Printf("Cleared content for %016X\n", titleID)
	return nil
}

func runStatus(client *boxcat.Client) error {
	result, global, games := client.GetStatus()
	if result != domain.StatusSuccess {
		return fmt.Errorf("status fetch failed: %s", result)
	}

	if global != nil {
		fmt.Printf("%s\n\n", *global)
	}
	if len(games) == 0 {
		fmt.Println("No title events announced.")
		return nil
	}
	for name, detail := range games {
		fmt.Printf("%s\n", name)
		if detail.Header != nil {
			fmt.Printf("  %s\n", *detail.Header)
		}
		for _, event := range detail.Events {
			fmt.Printf("  - %s\n", event)
		}
		if detail.Footer != nil {
			fmt.Printf("  %s\n", *detail.Footer)
		}
	}
	return nil
}

func parseTitle(titleArg, buildArg string) (domain.TitleVersion, error) {
	titleID, err := parseID(titleArg)
	if err != nil {
		return domain.TitleVersion{}, fmt.Errorf("invalid title id: %w", err)
	}
	buildID, err := parseID(buildArg)
	if err != nil {
		return domain.TitleVersion{}, fmt.Errorf("invalid build id: %w", err)
	}
	return domain.TitleVersion{TitleID: titleID, BuildID: buildID}, nil
}

func parseID(arg string) (uint64, error) {
	if arg == "" {
		return 0, fmt.Errorf("missing id")
	}
	return strconv.ParseUint(arg, 16, 64)
}
