// Package updater is the public entry point for embedding the update
// pipeline in a host application (spec §6). Its Config/Updater split
// mirrors the asaidimu-updater reference package's shape — a plain
// configuration struct plus a constructor that validates it and returns a
// ready-to-use handle — generalized here to wrap the internal Controller's
// state machine instead of a single request/response check.
package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/peerio/updater/internal/config"
	"github.com/peerio/updater/internal/controller"
	"github.com/peerio/updater/internal/fetch"
	"github.com/peerio/updater/internal/installer"
	"github.com/peerio/updater/internal/model"
	"github.com/peerio/updater/internal/policy"
)

// Event re-exports the controller's event variant for callers that only
// import this package.
type Event = model.Event

// Decision re-exports the install-decision guardrail's verdict.
type Decision = policy.Decision

// Config is the subset of model.Configuration plus host callbacks a
// consumer supplies when embedding the updater.
type Config struct {
	CurrentVersion    string
	PublicKeys        []string
	ManifestURLs      []string
	Nightly           bool
	AllowPrerelease   bool
	DownloadsDir      string
	AllowMajorJump    bool
	AutoInstall       bool
	MinisignPublicKey string

	// Installers supplies the per-platform install strategy; nil disables
	// QuitAndInstall/QuitAndRetryInstall (check/download still work).
	Installers installer.Table
}

// FromFile loads and validates a JSON configuration descriptor (spec §6)
// and merges it with the host-supplied Installers table.
func FromFile(data []byte, installers installer.Table) (Config, error) {
	cfg, err := config.Load(data)
	if err != nil {
		return Config{}, err
	}
	return Config{
		CurrentVersion:    cfg.Version,
		PublicKeys:        cfg.PublicKeys,
		ManifestURLs:      cfg.Manifests,
		Nightly:           cfg.Nightly,
		AllowPrerelease:   cfg.AllowPrerelease,
		DownloadsDir:      cfg.DownloadsDir,
		AllowMajorJump:    cfg.AllowMajorJump,
		AutoInstall:       cfg.AutoInstall,
		MinisignPublicKey: cfg.MinisignPublicKey,
		Installers:        installers,
	}, nil
}

// Updater wraps a Controller behind the narrow surface most host
// applications need: start checking, observe events, and drive an install.
type Updater struct {
	ctrl *controller.Controller
}

// New validates cfg and builds an Updater. The returned Updater owns no
// goroutines until CheckForUpdates or CheckPeriodically is called.
func New(cfg Config) (*Updater, error) {
	if cfg.CurrentVersion == "" {
		return nil, fmt.Errorf("updater: CurrentVersion is required")
	}
	if len(cfg.ManifestURLs) == 0 {
		return nil, fmt.Errorf("updater: at least one manifest URL is required")
	}
	if cfg.DownloadsDir == "" {
		return nil, fmt.Errorf("updater: DownloadsDir is required")
	}

	ctrl := controller.New(controller.Config{
		CurrentVersion:    cfg.CurrentVersion,
		ManifestURLs:      cfg.ManifestURLs,
		PublicKeys:        cfg.PublicKeys,
		Nightly:           cfg.Nightly,
		AllowPrerelease:   cfg.AllowPrerelease,
		DownloadsDir:      cfg.DownloadsDir,
		AutoInstall:       cfg.AutoInstall,
		AllowMajorJump:    cfg.AllowMajorJump,
		MinisignPublicKey: cfg.MinisignPublicKey,
	}, fetch.New(), cfg.Installers)

	return &Updater{ctrl: ctrl}, nil
}

// Events returns the Updater's event stream; callers should drain it for
// the lifetime of the Updater to avoid blocking internal emits.
func (u *Updater) Events() <-chan Event {
	return u.ctrl.Events()
}

// OnShutdown registers the host's exit-hook integration (spec §4.G).
// relaunchPath is the executable the host should hand back to the new
// process on Linux relaunch; it is empty on other platforms.
func (u *Updater) OnShutdown(register func(relaunchPath string, fn func())) {
	u.ctrl.OnShutdown(register)
}

// CheckForUpdates runs one check/download cycle; see controller.Controller
// for the exact state machine this drives.
func (u *Updater) CheckForUpdates(ctx context.Context) {
	u.ctrl.CheckForUpdates(ctx)
}

// CheckForUpdatesOnly runs the same check without starting an automatic
// Download. Use this when the caller drives check and download as separate
// explicit steps, to avoid racing its own Download call against an
// automatic one.
func (u *Updater) CheckForUpdatesOnly(ctx context.Context) {
	u.ctrl.CheckForUpdatesOnly(ctx)
}

// CheckPeriodically starts a recurring background check every interval
// (clamped to controller.MinInterval).
func (u *Updater) CheckPeriodically(ctx context.Context, interval time.Duration) {
	u.ctrl.CheckPeriodically(ctx, interval)
}

// StopCheckingPeriodically cancels a previously started periodic check.
func (u *Updater) StopCheckingPeriodically() {
	u.ctrl.StopCheckingPeriodically()
}

// Download fetches and verifies the artifact for platformTag, or the host's
// own platform when platformTag is empty.
func (u *Updater) Download(ctx context.Context, platformTag string) error {
	return u.ctrl.Download(ctx, platformTag)
}

// DecideInstall applies the install-decision guardrails to the currently
// pending update.
func (u *Updater) DecideInstall() (Decision, string, error) {
	return u.ctrl.DecideInstall()
}

// ScheduleInstallOnQuit arms the exit hook to install without restarting.
func (u *Updater) ScheduleInstallOnQuit() error {
	return u.ctrl.ScheduleInstallOnQuit()
}

// QuitAndInstall arms the exit hook to install and relaunch.
func (u *Updater) QuitAndInstall() error {
	return u.ctrl.QuitAndInstall()
}

// QuitAndRetryInstall retries an install after a previous attempt failed
// (spec §4.G crash-safety discipline), optionally reusing a still-valid
// local download instead of re-fetching it.
func (u *Updater) QuitAndRetryInstall(ctx context.Context, allowLocal bool) error {
	return u.ctrl.QuitAndRetryInstall(ctx, allowLocal)
}

// DidLastUpdateFail reports whether the persisted UpdateInfo in
// downloadsDir still names currentVersion as the pre-install version,
// meaning the process now running survived a failed or interrupted install.
func DidLastUpdateFail(downloadsDir, currentVersion string) bool {
	return controller.DidLastUpdateFail(downloadsDir, currentVersion)
}

// Cleanup removes any leftover downloaded artifact and UpdateInfo record.
func Cleanup(downloadsDir string) {
	controller.Cleanup(downloadsDir)
}
