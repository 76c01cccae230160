// Command updatectl is a thin operator-facing CLI over the update pipeline
// (spec §6). It follows the teacher's Handler-injection pattern
// (internal/cli/run.go) so the dispatch logic can be exercised in tests
// without forking a process, the same way main_test.go drives sfetch's CLI
// surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/peerio/updater/internal/cli"
	"github.com/peerio/updater/internal/installer"
	"github.com/peerio/updater/internal/model"
	"github.com/peerio/updater/internal/policy"
	"github.com/peerio/updater/internal/verify"
	"github.com/peerio/updater/pkg/updater"
)

var version = "dev"

func init() {
	cli.Handler = run
}

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "check":
		return runCheck(args[1:], stdout, stderr)
	case "download":
		return runDownload(args[1:], stdout, stderr)
	case "install":
		return runInstall(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "updatectl: unknown command %q\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: updatectl <command> [flags]")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  check     fetch manifests and report whether an update is available")
	fmt.Fprintln(w, "  download  check and download the update for the host platform")
	fmt.Fprintln(w, "  install   download (if needed) and re-exec the installer")
	fmt.Fprintln(w, "  version   print the build version")
}

type commonFlags struct {
	configPath   string
	downloadsDir string
	timeout      time.Duration
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "path to the JSON configuration descriptor (spec §6)")
	fs.StringVar(&c.downloadsDir, "downloads-dir", "", "override the configuration's downloadsDir")
	fs.DurationVar(&c.timeout, "timeout", 2*time.Minute, "overall command timeout")
	return c
}

func loadUpdater(c *commonFlags, stderr io.Writer) (*updater.Updater, error) {
	if c.configPath == "" {
		return nil, fmt.Errorf("-config is required")
	}
	data, err := os.ReadFile(c.configPath) // #nosec G304 -- operator-supplied CLI flag, not untrusted input
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.configPath, err)
	}
	cfg, err := updater.FromFile(data, defaultInstallers())
	if err != nil {
		return nil, err
	}
	if c.downloadsDir != "" {
		cfg.DownloadsDir = c.downloadsDir
	}
	return updater.New(cfg)
}

// defaultInstallers registers the file-replace Installer (spec §4.H dispatch
// table) for both the nightly and stable channel on the host's own GOOS; a
// host that needs privilege elevation or a platform package manager instead
// builds its own Table and calls updater.FromFile directly.
func defaultInstallers() installer.Table {
	fileInstaller := installer.FileInstaller{}
	return installer.Table{
		{GOOS: runtime.GOOS, Nightly: false}: fileInstaller,
		{GOOS: runtime.GOOS, Nightly: true}:  fileInstaller,
	}
}

func drainEvents(u *updater.Updater, stdout io.Writer, done <-chan struct{}) {
	for {
		select {
		case ev := <-u.Events():
			switch ev.Kind {
			case model.EventCheckingForUpdate:
				fmt.Fprintln(stdout, "checking for update...")
			case model.EventUpdateAvailable:
				fmt.Fprintf(stdout, "update available: %s\n", ev.Manifest.Header.Version)
			case model.EventUpdateNotAvailable:
				fmt.Fprintln(stdout, "no update available")
			case model.EventUpdateDownloaded:
				size := "unknown size"
				if info, err := os.Stat(ev.Path); err == nil {
					size = verify.FormatSize(info.Size())
				}
				fmt.Fprintf(stdout, "downloaded %s (%s) to %s\n", ev.Manifest.Header.Version, size, ev.Path)
			case model.EventError:
				fmt.Fprintf(stdout, "error: %v\n", ev.Err)
			}
		case <-done:
			return
		}
	}
}

func runCheck(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := bindCommon(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	u, err := loadUpdater(c, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() { u.CheckForUpdatesOnly(ctx); close(done) }()
	drainEvents(u, stdout, done)
	return 0
}

func runDownload(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := bindCommon(fs)
	platformTag := fs.String("platform", "", "manifest platform tag (default: host platform)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	u, err := loadUpdater(c, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() { u.CheckForUpdatesOnly(ctx); close(done) }()
	drainEvents(u, stdout, done)

	if err := u.Download(ctx, *platformTag); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runInstall(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := bindCommon(fs)
	retry := fs.Bool("retry", false, "retry an install after a previous failed attempt")
	allowLocal := fs.Bool("allow-local", true, "reuse a still-valid local download when retrying")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	u, err := loadUpdater(c, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if *retry {
		if err := u.QuitAndRetryInstall(ctx, *allowLocal); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	done := make(chan struct{})
	go func() { u.CheckForUpdatesOnly(ctx); close(done) }()
	drainEvents(u, stdout, done)

	if err := u.Download(ctx, ""); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	decision, reason, err := u.DecideInstall()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintf(stdout, "install decision: %s (%s)\n", decision, reason)
	if decision == policy.DecisionSkip || decision == policy.DecisionRefuse {
		return 0
	}

	if err := u.QuitAndInstall(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
