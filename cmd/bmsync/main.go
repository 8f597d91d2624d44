package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nikbrunner/bmsync/internal/bookmarks"
	"github.com/nikbrunner/bmsync/internal/culler"
	"github.com/nikbrunner/bmsync/internal/exporter"
	"github.com/nikbrunner/bmsync/internal/favicon"
	"github.com/nikbrunner/bmsync/internal/logging"
	"github.com/nikbrunner/bmsync/internal/native"
	"github.com/nikbrunner/bmsync/internal/picker"
	"github.com/nikbrunner/bmsync/internal/reconcile"
	"github.com/nikbrunner/bmsync/internal/render"
	"github.com/nikbrunner/bmsync/internal/search"
	"github.com/nikbrunner/bmsync/internal/storage"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// shutdownTimeout bounds how long pending writes and favicon refreshes may
// take on exit.
const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printHelp()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "help", "--help", "-h":
		printHelp()
		return
	case "sync":
		err = runSync(ctx)
	case "watch":
		err = runWatch(ctx)
	case "tree":
		err = runTree(ctx, args)
	case "search":
		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Usage: bmsync search <query>\n")
			os.Exit(1)
		}
		err = runSearch(ctx, strings.Join(args, " "))
	case "open":
		err = runOpen(ctx, args)
	case "style":
		if len(args) != 3 {
			fmt.Fprintf(os.Stderr, "Usage: bmsync style <folder-id> <icon> <color>\n")
			os.Exit(1)
		}
		err = runStyle(ctx, args[0], args[1], args[2])
	case "check":
		err = runCheck(ctx)
	case "export":
		var outputPath string
		if len(args) >= 1 {
			outputPath = args[0]
		}
		err = runExport(ctx, outputPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	help := `bmsync - bookmark tree mirror with folder icons, colors and favicons

Usage:
  bmsync sync                         Reconcile the stored tree with the places file
  bmsync watch                        Reconcile, then follow changes until interrupted
  bmsync tree [-urls] [-ids]          Print the tree with folder colors
  bmsync search <query>               Fuzzy search bookmarks
  bmsync open [-c] <query>            Search, pick and open (or copy with -c)
  bmsync style <id> <icon> <color>    Set a folder's icon and color
  bmsync check                        Find bookmarks with dead links
  bmsync export [path]                Export as HTML with embedded favicons
  bmsync help                         Show this help

Picker keys:
  j/k, up/down   Move
  /              Refine the query
  Enter          Open bookmark
  y/c            Copy URL
  q/Esc          Cancel

Configuration:
  ~/.config/bmsync/config.yaml
`
	fmt.Print(help)
}

// app wires the stores, the bookmark source and the manager for one run.
type app struct {
	cfg       *storage.Config
	log       zerolog.Logger
	backend   storage.Backend
	cache     *favicon.Cache
	refresher *favicon.Refresher
	service   bookmarks.Service
	places    *bookmarks.FileService
	closer    func() error
	manager   *reconcile.Manager
}

// openApp loads the configuration, wires every component and reconciles
// the stored tree.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := storage.LoadConfig(storage.DefaultConfigFilePath())
	if err != nil {
		return nil, err
	}
	log := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	backend, err := storage.OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, backend: backend}
	a.cache = favicon.NewCache(favicon.Config{
		Store:   backend,
		Fetcher: favicon.NewHTTPFetcher(cfg.Favicon.URLTemplate, cfg.Favicon.Timeout),
		Logger:  &log,
	})
	a.refresher = favicon.NewRefresher(favicon.RefresherConfig{
		Cache:     a.cache,
		Workers:   cfg.Favicon.Workers,
		QueueSize: cfg.Favicon.QueueSize,
		Logger:    &log,
	})

	if cfg.Places == "" {
		log.Warn().Msg("no places file configured, starting from an empty tree")
		memory := bookmarks.NewMemory()
		a.service, a.closer = memory, memory.Close
	} else {
		places, err := bookmarks.NewFileService(bookmarks.FileConfig{
			Path:     cfg.Places,
			Debounce: cfg.Watch.Debounce,
			Logger:   &log,
		})
		if err != nil {
			a.refresher.Close(ctx)
			backend.Close()
			return nil, err
		}
		a.service, a.places, a.closer = places, places, places.Close
	}

	a.manager = reconcile.New(reconcile.Config{
		Service:  a.service,
		Store:    backend,
		Favicons: a.refresher,
		Native: native.New(native.Config{
			Command: cfg.Native.Command,
			Args:    cfg.Native.Args,
			Timeout: cfg.Native.Timeout,
			Logger:  &log,
		}),
		Logger: &log,
	})

	report, err := a.manager.Start(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	log.Debug().Int("added", report.Added).Int("updated", report.Updated).Int("removed", report.Removed).Msg("started")
	return a, nil
}

// close flushes the tree, waits for favicon refreshes and releases the
// stores.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.manager.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("shutdown incomplete")
	}
	if err := a.closer(); err != nil {
		a.log.Warn().Err(err).Msg("closing bookmark source")
	}
	if err := a.backend.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing store")
	}
}

// runSync handles the sync subcommand.
func runSync(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	root := a.manager.Tree()
	fmt.Printf("Synced %d nodes, %d folders\n", root.Len(), root.Folders().Len())
	return nil
}

// runWatch handles the watch subcommand.
func runWatch(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.places != nil {
		if err := a.places.Start(ctx); err != nil {
			return err
		}
	}

	a.manager.Subscribe(func(e reconcile.Event) {
		switch e := e.(type) {
		case reconcile.Created:
			fmt.Printf("+ %s %s\n", e.ID, e.Node.Title)
		case reconcile.Changed:
			fmt.Printf("~ %s %s\n", e.ID, e.Node.Title)
		case reconcile.Removed:
			fmt.Printf("- %s %s\n", e.ID, e.Node.Title)
		case reconcile.Moved:
			fmt.Printf("> %s %s -> %s[%d]\n", e.ID, e.Node.Title, e.Info.ParentID, e.Info.Index)
		}
	})

	fmt.Println("Watching for changes, Ctrl-C to stop")
	return a.manager.Run(ctx)
}

// runTree handles the tree subcommand.
func runTree(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	urls := fs.Bool("urls", false, "print bookmark URLs")
	ids := fs.Bool("ids", false, "print node ids")
	fs.Parse(args)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println(render.Tree(a.manager.Tree(), render.Options{URLs: *urls, IDs: *ids}))
	return nil
}

// runSearch handles the search subcommand.
func runSearch(ctx context.Context, query string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	results := search.FuzzySearchBookmarks(a.manager.Tree(), query)
	if len(results) == 0 {
		fmt.Printf("No bookmarks found for '%s'\n", query)
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s\n    %s\n", r.Node.Title, r.Node.URL)
		if r.Path != "" {
			fmt.Printf("    in %s\n", r.Path)
		}
	}
	return nil
}

// runOpen searches, lets the user pick a result and opens or copies it.
func runOpen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	copyURL := fs.Bool("c", false, "copy the URL instead of opening it")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: bmsync open [-c] <query>\n")
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	root := a.manager.Tree()
	results := search.FuzzySearchBookmarks(root, query)
	if len(results) == 0 {
		fmt.Printf("No bookmarks found for '%s'\n", query)
		return nil
	}

	var selected *tree.Node
	action := picker.ActionOpen
	if len(results) == 1 {
		// Single result - select it directly
		selected = results[0].Node
	} else {
		program := tea.NewProgram(picker.NewSearch(root, query))
		finalModel, err := program.Run()
		if err != nil {
			return fmt.Errorf("running picker: %w", err)
		}
		finalPicker := finalModel.(picker.Picker)
		if finalPicker.Cancelled() {
			return nil
		}
		selected, action = finalPicker.Selected()
	}
	if selected == nil {
		return nil
	}

	if *copyURL || action == picker.ActionCopy {
		if err := clipboard.WriteAll(selected.URL); err != nil {
			return fmt.Errorf("copying URL: %w", err)
		}
		fmt.Printf("Copied: %s\n", selected.URL)
		return nil
	}
	fmt.Printf("Opening: %s\n", selected.Title)
	openURL(selected.URL)
	return nil
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}

// runStyle handles the style subcommand.
func runStyle(ctx context.Context, id, icon, color string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	folder := a.manager.Get(id)
	if folder == nil {
		return fmt.Errorf("%w: %s", bookmarks.ErrNotFound, id)
	}
	if !folder.IsFolder() {
		return fmt.Errorf("%s is not a folder", id)
	}

	result, err := a.manager.RequestUpdate(ctx, id, tree.StylePatch(icon, color))
	if err != nil {
		return err
	}
	fmt.Printf("Styled %s: %s %s\n", result.Node.Title, result.Node.Icon, result.Node.Color)
	if result.Styled {
		fmt.Println("Restart the browser to apply the new style")
	}
	return nil
}

// runCheck checks every bookmark URL and lists the dead and unreachable
// ones.
func runCheck(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	checker := culler.New(culler.Config{
		Concurrency:    a.cfg.Check.Concurrency,
		Timeout:        a.cfg.Check.Timeout,
		ExcludeDomains: a.cfg.Check.ExcludeDomains,
		OnProgress: func(completed, total int) {
			fmt.Fprintf(os.Stderr, "\rChecking %d/%d", completed, total)
		},
		Logger: &a.log,
	})
	results, err := checker.Check(ctx, a.manager.Tree())
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	var dead, unreachable int
	for _, r := range results {
		switch r.Status {
		case culler.Dead:
			dead++
			fmt.Printf("dead         %s  %s (%d)\n", r.Bookmark.ID, r.Bookmark.URL, r.StatusCode)
		case culler.Unreachable:
			unreachable++
			fmt.Printf("unreachable  %s  %s (%s)\n", r.Bookmark.ID, r.Bookmark.URL, r.Error)
		}
	}
	fmt.Printf("Checked %d bookmarks: %d dead, %d unreachable\n", len(results), dead, unreachable)
	return nil
}

// runExport handles the export subcommand.
func runExport(ctx context.Context, outputPath string) error {
	if outputPath == "" {
		var err error
		outputPath, err = exporter.DefaultExportPath()
		if err != nil {
			return fmt.Errorf("getting default export path: %w", err)
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	root := a.manager.Tree()
	html := exporter.ExportHTML(ctx, root, a.cache)
	if err := os.WriteFile(outputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	fmt.Printf("Exported %d nodes to %s\n", root.Len(), outputPath)
	return nil
}
