// olive runs a live-coded script against a long-lived host, recompiling and
// swapping it in whenever the file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/olive/compiler"
	"github.com/chazu/olive/journal"
	"github.com/chazu/olive/live"
	"github.com/chazu/olive/manifest"
	"github.com/chazu/olive/reload"
	"github.com/chazu/olive/server"
	"github.com/chazu/olive/watch"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("olive")

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "check":
			os.Exit(runCheck(os.Args[2:]))
		case "lsp":
			os.Exit(runLSP(os.Args[2:]))
		}
	}
	os.Exit(run(os.Args[1:]))
}

type options struct {
	config    string
	verbosity int
	watchMode string
	fps       int
	control   string
	health    string
	journal   string
	saveState bool
}

func run(args []string) int {
	fset := flag.NewFlagSet("olive", flag.ExitOnError)
	var opts options
	fset.StringVar(&opts.config, "config", "", "Configuration file (default: olive.toml found from the current directory up)")
	fset.IntVar(&opts.verbosity, "v", -1, "Log verbosity 0-5 (overrides [log] verbosity)")
	fset.StringVar(&opts.watchMode, "watch", "", "Change detection: stat or notify")
	fset.IntVar(&opts.fps, "fps", 0, "Ticks per second")
	fset.StringVar(&opts.control, "control", "", "Control API address, e.g. 127.0.0.1:7420")
	fset.StringVar(&opts.health, "health", "", "gRPC health address")
	fset.StringVar(&opts.journal, "journal", "", "Reload journal database (\":memory:\" for a throwaway one)")
	fset.BoolVar(&opts.saveState, "save-state", false, "Load persistent state at startup and save it on exit")
	fset.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: olive [options] [script]\n")
		fmt.Fprintf(os.Stderr, "       olive check [-config file] <script>...\n")
		fmt.Fprintf(os.Stderr, "       olive lsp [-config file]\n\n")
		fmt.Fprintf(os.Stderr, "Runs script against the configured host type and reloads it on every change.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fset.PrintDefaults()
	}
	fset.Parse(args)

	m, err := loadManifest(opts.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	applyFlags(m, &opts, fset.Args())
	configureLogging(m)

	if err := serve(m); err != nil {
		log.Errorf("%s", err)
		return 1
	}
	return 0
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

// applyFlags lets command line options override the configuration file.
func applyFlags(m *manifest.Manifest, opts *options, args []string) {
	if len(args) > 0 {
		abs, err := filepath.Abs(args[0])
		if err == nil {
			m.Script.Path = abs
		}
	}
	if opts.verbosity >= 0 {
		m.Log.Verbosity = opts.verbosity
	}
	if opts.watchMode != "" {
		m.Script.Watch = opts.watchMode
	}
	if opts.fps > 0 {
		m.Host.FPS = opts.fps
	}
	if opts.control != "" {
		m.Server.Control = opts.control
	}
	if opts.health != "" {
		m.Server.Health = opts.health
	}
	if opts.journal != "" {
		m.Journal.Path = opts.journal
	}
	if opts.saveState {
		m.State.Save = true
	}
}

func configureLogging(m *manifest.Manifest) {
	var path *string
	if m.Log.File != "" {
		p := m.Resolve(m.Log.File)
		path = &p
	}
	commonlog.Configure(m.Log.Verbosity, path)
}

func serve(m *manifest.Manifest) error {
	h, err := newDemoHost(m.Host.Name, m.Host.Width, m.Host.Height)
	if err != nil {
		return err
	}

	statePath := m.StatePath()
	if m.State.Save {
		restored, err := h.State().LoadFile(statePath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			log.Warningf("%s", err)
		default:
			log.Infof("restored %v from %s", restored, statePath)
		}
	}

	mode, err := watch.ParseMode(m.Script.Watch)
	if err != nil {
		return err
	}
	w, err := watch.New(m.ScriptPath(), mode)
	if err != nil {
		return err
	}
	defer w.Close()

	var ropts reload.Options
	if path := m.JournalPath(); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return err
		}
		defer j.Close()
		ropts.Journal = j
	}

	coord := reload.New(w, h, ropts)
	rt := live.New(coord)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := m.Server.Control; addr != "" {
		srv := server.New(rt)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("control: %w", err)
		}
		go func() {
			if err := srv.Serve(lis); err != nil {
				log.Errorf("control: %s", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	if addr := m.Server.Health; addr != "" {
		hs := server.NewHealth(coord)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		go func() {
			if err := hs.Serve(lis); err != nil {
				log.Errorf("health: %s", err)
			}
		}()
		defer hs.Stop()
	}

	log.Noticef("watching %s (%s mode)", w.Path(), w.Mode())
	if err := rt.Run(ctx, m.Host.FPS); err != nil {
		return err
	}

	if m.State.Save {
		if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
			return err
		}
		if err := h.State().SaveFile(statePath); err != nil {
			return err
		}
		log.Infof("saved state to %s", statePath)
	}
	return nil
}

// runCheck compiles each script once and prints its problems.
func runCheck(args []string) int {
	fset := flag.NewFlagSet("check", flag.ExitOnError)
	config := fset.String("config", "", "Configuration file")
	fset.Parse(args)

	if fset.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: olive check [-config file] <script>...\n")
		return 2
	}
	m, err := loadManifest(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ht := newPersistentProgram(m.Host.Name)
	status := 0
	for _, path := range fset.Args() {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			status = 1
			continue
		}
		problems, warnings := compiler.Check(path, src, ht)
		for _, p := range warnings {
			fmt.Printf("%s:%s (warning)\n", path, p)
		}
		for _, p := range problems {
			fmt.Printf("%s:%s\n", path, p)
		}
		if len(problems) > 0 {
			status = 1
		}
	}
	return status
}

// runLSP serves the language server on stdio. Logging goes to the
// configured file, never to stdout.
func runLSP(args []string) int {
	fset := flag.NewFlagSet("lsp", flag.ExitOnError)
	config := fset.String("config", "", "Configuration file")
	fset.Parse(args)

	m, err := loadManifest(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	var path *string
	if m.Log.File != "" {
		p := m.Resolve(m.Log.File)
		path = &p
	}
	commonlog.Configure(m.Log.Verbosity, path)

	if err := server.NewLSP(newPersistentProgram(m.Host.Name)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
