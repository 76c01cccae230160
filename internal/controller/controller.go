// Package controller implements the Update Controller state machine (spec
// §4.G): sequencing check → download → verify → persist → install, emitting
// a totally-ordered event stream, and surviving crashes across the install
// attempt. The source's dynamic event-bus emission is replaced by a typed
// channel of tagged variants (spec §9 design note).
package controller

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/peerio/updater/internal/fetch"
	"github.com/peerio/updater/internal/hostenv"
	"github.com/peerio/updater/internal/host/github"
	"github.com/peerio/updater/internal/installer"
	"github.com/peerio/updater/internal/manifest"
	"github.com/peerio/updater/internal/model"
	"github.com/peerio/updater/internal/platform"
	"github.com/peerio/updater/internal/policy"
	"github.com/peerio/updater/internal/selfupdate"
	"github.com/peerio/updater/internal/verify"
)

const (
	// MinInterval is the shortest period CheckPeriodically accepts (spec §4.G).
	MinInterval = 15 * time.Minute
	// DefaultInterval is used when CheckPeriodically is given interval <= 0.
	DefaultInterval = 10 * time.Hour

	updateInfoFileName = "update-info.json"
	tempFilePrefix     = "peerio-update-"
)

// Config carries the Controller's configuration, derived from
// model.Configuration plus the pieces the source would otherwise inject as
// host callbacks.
type Config struct {
	CurrentVersion  string
	ManifestURLs    []string
	PublicKeys      []string
	Nightly         bool
	AllowPrerelease bool
	DownloadsDir    string
	AutoInstall     bool
	AllowMajorJump  bool
	// MinisignPublicKey enables the optional sidecar-signature check
	// (SPEC_FULL supplemented feature #4) when non-empty.
	MinisignPublicKey string
}

// Controller owns ControllerState exclusively (spec §3 Ownership) and
// sequences the update pipeline. The zero value is not usable; build one
// with New.
type Controller struct {
	cfg        Config
	fetcher    *fetch.Fetcher
	installers installer.Table

	mu             sync.Mutex
	checking       bool
	downloading    bool
	newVersion     *model.Manifest
	downloadedFile string
	exitHookArmed  bool
	restart        bool

	events chan model.Event

	periodicStop chan struct{}
	periodicDone chan struct{}

	onShutdown func(relaunchPath string, fn func())
}

// New builds a Controller. installers may be nil if the caller only wants
// check/download behavior without ever calling QuitAndInstall.
func New(cfg Config, fetcher *fetch.Fetcher, installers installer.Table) *Controller {
	if fetcher == nil {
		fetcher = fetch.New()
	}
	return &Controller{
		cfg:        cfg,
		fetcher:    fetcher,
		installers: installers,
		events:     make(chan model.Event, 16),
	}
}

// Events returns the Controller's event stream (spec §9 design note). Events
// within a single CheckForUpdates/Download cycle are emitted in the order
// described by spec §5.
func (c *Controller) Events() <-chan model.Event {
	return c.events
}

// OnShutdown registers the host's exit-hook integration: register(relaunchPath,
// fn) must arrange for fn to run once, synchronously, when the host decides
// to quit (spec §4.G "Exit hook"). relaunchPath is the executable the host
// should hand back to the new process on Linux relaunch (spec §6), resolved
// from PEERIO_UPDATER_RELAUNCH_EXE when the running executable's own path
// can't be determined; it is empty on other platforms. If no integration is
// ever registered, QuitAndInstall runs the exit hook synchronously itself
// instead of waiting on a host callback.
func (c *Controller) OnShutdown(register func(relaunchPath string, fn func())) {
	c.onShutdown = register
}

// resolveRelaunchPath resolves the executable path handed to the host on
// relaunch (spec §4.G quitAndInstall, §6 environment). Only Linux hosts need
// this; other platforms relaunch through their own packaging mechanism.
func (c *Controller) resolveRelaunchPath() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	path, err := selfupdate.RelaunchTarget("")
	if err != nil {
		return ""
	}
	return path
}

func (c *Controller) emit(ev model.Event) {
	c.events <- ev
}

// CheckForUpdates implements spec §4.G's checkForUpdates: it tries each
// configured manifest URL in order, surfacing only the last failure if every
// source fails, and starts an automatic Download when a new version is
// found and nothing is already downloading or downloaded. A tick that
// arrives while a check is already in progress is dropped (spec §5: "either
// drop or queue the redundant tick"). Callers that drive check and download
// as separate, explicit steps (as cmd/updatectl does) should use
// CheckForUpdatesOnly instead, to avoid racing their own Download call
// against this method's automatic one.
func (c *Controller) CheckForUpdates(ctx context.Context) {
	if c.checkForUpdates(ctx) {
		go c.Download(ctx, "")
	}
}

// CheckForUpdatesOnly runs the same check as CheckForUpdates but never
// starts an automatic Download, even when a newer version is found. Use this
// when the caller will decide for itself whether and when to call Download.
func (c *Controller) CheckForUpdatesOnly(ctx context.Context) {
	c.checkForUpdates(ctx)
}

// checkForUpdates performs the check and event emission shared by
// CheckForUpdates and CheckForUpdatesOnly, returning whether a newly found
// version is eligible for an automatic download (nothing already
// downloading or downloaded).
func (c *Controller) checkForUpdates(ctx context.Context) bool {
	c.mu.Lock()
	if c.checking {
		c.mu.Unlock()
		return false
	}
	c.checking = true
	c.mu.Unlock()

	c.emit(model.Event{Kind: model.EventCheckingForUpdate})

	var m *model.Manifest
	var lastErr error
	for _, url := range c.cfg.ManifestURLs {
		fetched, err := c.fetchManifest(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		m = fetched
		lastErr = nil
		break
	}

	c.mu.Lock()
	c.checking = false
	c.mu.Unlock()

	if lastErr != nil {
		c.emit(model.Event{Kind: model.EventError, Err: lastErr})
		return false
	}
	if m == nil {
		c.emit(model.Event{Kind: model.EventUpdateNotAvailable})
		return false
	}

	newer, err := m.IsNewerVersionThan(c.cfg.CurrentVersion)
	if err != nil {
		c.emit(model.Event{Kind: model.EventError, Err: err})
		return false
	}
	if !newer {
		c.emit(model.Event{Kind: model.EventUpdateNotAvailable})
		return false
	}

	c.mu.Lock()
	c.newVersion = m
	shouldDownload := !c.downloading && c.downloadedFile == ""
	c.mu.Unlock()

	c.emit(model.Event{Kind: model.EventUpdateAvailable, Manifest: m})

	return shouldDownload
}

// fetchManifest resolves one configured URL to a Manifest (spec §4.G
// fetchManifest). A "github:<owner>/<repo>" reference is expanded through
// the GitHub Releases API; anything else is fetched and parsed directly.
// Returns (nil, nil) when a github reference has no release newer than the
// running version.
func (c *Controller) fetchManifest(ctx context.Context, url string) (*model.Manifest, error) {
	if strings.HasPrefix(url, "github:") {
		assetURL, err := github.ManifestAssetURL(ctx, c.fetcher, url, c.cfg.CurrentVersion, c.cfg.AllowPrerelease)
		if err != nil {
			return nil, err
		}
		if assetURL == "" {
			return nil, nil
		}
		return c.fetchManifest(ctx, assetURL)
	}

	text, err := c.fetcher.FetchText(ctx, url, "")
	if err != nil {
		return nil, err
	}
	m, err := manifest.LoadFromString(c.cfg.PublicKeys, text)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Download implements spec §4.G's download: it requires a pending
// newVersion, resolves the platform entry, guards against a noexec
// downloads directory, streams the artifact to a randomly-named temp file,
// and verifies its size and hash before declaring it downloaded.
func (c *Controller) Download(ctx context.Context, platformTag string) error {
	c.mu.Lock()
	if c.newVersion == nil {
		c.mu.Unlock()
		err := model.Errf(model.ErrNoUpdate, "no pending update to download")
		c.emit(model.Event{Kind: model.EventError, Err: err})
		return err
	}
	if c.downloading {
		c.mu.Unlock()
		return model.Errf(model.ErrDownloadInProgress, "a download is already in progress")
	}

	if platformTag == "" {
		resolved, err := platform.Host()
		if err != nil {
			c.mu.Unlock()
			c.emit(model.Event{Kind: model.EventError, Err: err})
			return err
		}
		platformTag = resolved
	}

	entry, ok := c.newVersion.PlatformEntryFor(platformTag)
	if !ok {
		c.mu.Unlock()
		err := model.Errf(model.ErrNoPlatformFile, "manifest has no entry for platform %q", platformTag)
		c.emit(model.Event{Kind: model.EventError, Err: err})
		return err
	}
	m := c.newVersion
	c.downloading = true
	c.mu.Unlock()

	path, err := c.runDownload(ctx, entry)

	c.mu.Lock()
	c.downloading = false
	if err == nil {
		c.downloadedFile = path
		if c.cfg.AutoInstall {
			c.exitHookArmed = true
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.emit(model.Event{Kind: model.EventError, Err: err})
		return err
	}
	c.emit(model.Event{Kind: model.EventUpdateDownloaded, Path: path, Manifest: m})
	return nil
}

func (c *Controller) runDownload(ctx context.Context, entry model.PlatformEntry) (string, error) {
	if err := hostenv.CheckDownloadsDir(c.cfg.DownloadsDir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.cfg.DownloadsDir, 0o755); err != nil {
		return "", model.Wrap(model.ErrRequestFailed, err, "create downloads directory %s", c.cfg.DownloadsDir)
	}

	tempPath, err := c.tempFilePath()
	if err != nil {
		return "", err
	}

	path, err := c.fetcher.FetchFile(ctx, entry.File, tempPath)
	if err != nil {
		return "", err
	}

	if err := verify.VerifySize(entry.Size, path); err != nil {
		os.Remove(path)
		return "", err
	}
	if err := verify.VerifyHash(entry.SHA512, path); err != nil {
		os.Remove(path)
		return "", err
	}
	if entry.Minisig != "" && c.cfg.MinisignPublicKey != "" {
		if err := c.fetcher.VerifySidecarSignature(ctx, c.cfg.MinisignPublicKey, entry.Minisig, path); err != nil {
			os.Remove(path)
			return "", err
		}
	}
	return path, nil
}

func (c *Controller) tempFilePath() (string, error) {
	var random [10]byte
	if _, err := rand.Read(random[:]); err != nil {
		return "", model.Wrap(model.ErrRequestFailed, err, "sample temp filename randomness")
	}
	name := fmt.Sprintf("%s%s.tmp", tempFilePrefix, hex.EncodeToString(random[:]))
	return filepath.Join(c.cfg.DownloadsDir, name), nil
}

// CheckPeriodically schedules a recurring CheckForUpdates call, clamping
// interval to at least MinInterval (spec §4.G). Calling it again replaces
// any previously scheduled timer.
func (c *Controller) CheckPeriodically(ctx context.Context, interval time.Duration) {
	c.StopCheckingPeriodically()

	if interval <= 0 {
		interval = DefaultInterval
	} else if interval < MinInterval {
		interval = MinInterval
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.mu.Lock()
	c.periodicStop = stop
	c.periodicDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CheckForUpdates(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopCheckingPeriodically cancels the periodic timer only; any in-flight
// fetch keeps running until its own timeout (spec §5).
func (c *Controller) StopCheckingPeriodically() {
	c.mu.Lock()
	stop := c.periodicStop
	done := c.periodicDone
	c.periodicStop = nil
	c.periodicDone = nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// DecideInstall applies the install-decision guardrails (SPEC_FULL
// supplemented feature #1) to the currently pending newVersion.
func (c *Controller) DecideInstall() (policy.Decision, string, error) {
	c.mu.Lock()
	m := c.newVersion
	c.mu.Unlock()
	if m == nil {
		return "", "", model.Errf(model.ErrNoUpdate, "no pending update to decide on")
	}
	return policy.DecideInstall(c.cfg.CurrentVersion, m.Header.Version, policy.Options{
		AllowMajorJump: c.cfg.AllowMajorJump,
	})
}

// ScheduleInstallOnQuit persists UpdateInfo and arms the exit hook without
// requesting a relaunch (spec §4.G scheduleInstallOnQuit).
func (c *Controller) ScheduleInstallOnQuit() error {
	c.mu.Lock()
	c.restart = false
	c.mu.Unlock()
	return c.persistAndArm()
}

// QuitAndInstall persists UpdateInfo, arms the exit hook with restart=true,
// and fires the registered shutdown callback if one was provided (spec
// §4.G quitAndInstall). If no host integration was ever registered via
// OnShutdown, the exit hook runs synchronously here instead — the process
// itself is the fallback quit signal (spec §4.G "If no host integration is
// available, wire to process exit").
func (c *Controller) QuitAndInstall() error {
	c.mu.Lock()
	c.restart = true
	c.mu.Unlock()
	if err := c.persistAndArm(); err != nil {
		return err
	}
	if c.onShutdown != nil {
		c.onShutdown(c.resolveRelaunchPath(), c.runArmedInstall)
	} else {
		c.runArmedInstall()
	}
	return nil
}

// QuitAndRetryInstall implements spec §4.G's quitAndRetryInstall: if
// allowLocal is true and a previously-downloaded file on disk still
// verifies against the persisted UpdateInfo and lies under downloadsDir, it
// is reused; otherwise a check and Download run again before retrying the
// install (using the check-only path, since this method drives Download
// itself and must not race an automatic one). Every attempt, successful or
// not, bumps the persisted attempt count.
func (c *Controller) QuitAndRetryInstall(ctx context.Context, allowLocal bool) error {
	if allowLocal {
		if info, err := ReadUpdateInfo(c.cfg.DownloadsDir); err == nil {
			if rel, relErr := filepath.Rel(c.cfg.DownloadsDir, info.UpdateFile); relErr == nil && !strings.HasPrefix(rel, "..") {
				if verify.VerifySize(info.UpdateSize, info.UpdateFile) == nil && verify.VerifyHash(info.UpdateHash, info.UpdateFile) == nil {
					c.mu.Lock()
					c.downloadedFile = info.UpdateFile
					if c.newVersion == nil {
						c.newVersion = &model.Manifest{Header: model.ManifestHeader{Version: info.UpdateVersion}}
					}
					c.mu.Unlock()
					return c.bumpAttemptsAndInstall()
				}
			}
		}
	}

	c.checkForUpdates(ctx)
	c.mu.Lock()
	hasFile := c.downloadedFile != ""
	c.mu.Unlock()
	if !hasFile {
		if err := c.Download(ctx, ""); err != nil {
			if info, readErr := ReadUpdateInfo(c.cfg.DownloadsDir); readErr == nil {
				info.Attempts++
				_ = writeUpdateInfo(c.cfg.DownloadsDir, info)
			}
			return err
		}
	}
	return c.bumpAttemptsAndInstall()
}

func (c *Controller) bumpAttemptsAndInstall() error {
	info, err := ReadUpdateInfo(c.cfg.DownloadsDir)
	attempts := 1
	if err == nil {
		attempts = info.Attempts + 1
	}
	if err := c.QuitAndInstall(); err != nil {
		return err
	}
	c.mu.Lock()
	m := c.newVersion
	path := c.downloadedFile
	c.mu.Unlock()
	if m == nil || path == "" {
		return nil
	}
	hash, hashErr := verify.CalculateHash(path)
	if hashErr != nil {
		return nil
	}
	st, statErr := os.Stat(path)
	if statErr != nil {
		return nil
	}
	_ = writeUpdateInfo(c.cfg.DownloadsDir, model.UpdateInfo{
		Attempts:       attempts,
		CurrentVersion: c.cfg.CurrentVersion,
		UpdateVersion:  m.Header.Version,
		UpdateSize:     st.Size(),
		UpdateHash:     hash,
		UpdateFile:     path,
	})
	return nil
}

func (c *Controller) persistAndArm() error {
	c.mu.Lock()
	m := c.newVersion
	path := c.downloadedFile
	c.mu.Unlock()
	if m == nil || path == "" {
		return model.Errf(model.ErrUpdateInfoInvalid, "no downloaded update to persist")
	}

	hash, err := verify.CalculateHash(path)
	if err != nil {
		return err
	}
	st, err := os.Stat(path)
	if err != nil {
		return model.Wrap(model.ErrUpdateInfoInvalid, err, "stat %s", path)
	}
	size := st.Size()

	info := model.UpdateInfo{
		Attempts:       1,
		CurrentVersion: c.cfg.CurrentVersion,
		UpdateVersion:  m.Header.Version,
		UpdateSize:     size,
		UpdateHash:     hash,
		UpdateFile:     path,
	}
	if err := writeUpdateInfo(c.cfg.DownloadsDir, info); err != nil {
		// Write errors must be non-fatal to scheduling an install (spec §5).
		fmt.Fprintf(os.Stderr, "warning: failed to persist update-info.json: %v\n", err)
	}

	c.mu.Lock()
	c.exitHookArmed = true
	c.mu.Unlock()
	return nil
}

func (c *Controller) runArmedInstall() {
	c.mu.Lock()
	path := c.downloadedFile
	restart := c.restart
	armed := c.exitHookArmed
	c.mu.Unlock()
	if !armed || c.installers == nil {
		return
	}

	inst, err := c.installers.Lookup(c.cfg.Nightly)
	if err != nil {
		c.emit(model.Event{Kind: model.EventError, Err: err})
		return
	}
	if err := inst.Install(path, restart); err != nil {
		c.emit(model.Event{Kind: model.EventError, Err: err})
	}
}

// DidLastUpdateFail implements spec §4.G's crash-safety discipline: the
// install was attempted iff a readable UpdateInfo still names
// currentVersion as the pre-install version.
func DidLastUpdateFail(downloadsDir, currentVersion string) bool {
	info, err := ReadUpdateInfo(downloadsDir)
	if err != nil {
		return false
	}
	return info.CurrentVersion == currentVersion
}

// ReadUpdateInfo reads the persisted UpdateInfo record from downloadsDir.
func ReadUpdateInfo(downloadsDir string) (model.UpdateInfo, error) {
	path := filepath.Join(downloadsDir, updateInfoFileName)
	// #nosec G304 -- downloadsDir is process-owned, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return model.UpdateInfo{}, model.Wrap(model.ErrUpdateInfoInvalid, err, "read %s", path)
	}
	var info model.UpdateInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return model.UpdateInfo{}, model.Wrap(model.ErrUpdateInfoInvalid, err, "parse %s", path)
	}
	if !info.Valid() {
		return model.UpdateInfo{}, model.Errf(model.ErrUpdateInfoInvalid, "%s is missing required fields", path)
	}
	return info, nil
}

func writeUpdateInfo(downloadsDir string, info model.UpdateInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(downloadsDir, updateInfoFileName)
	return os.WriteFile(path, data, 0o644)
}

// Cleanup removes the downloaded artifact — only if it resides under
// downloadsDir — and the update-info file, swallowing any filesystem error
// (spec §4.G crash-safety discipline).
func Cleanup(downloadsDir string) {
	info, err := ReadUpdateInfo(downloadsDir)
	if err == nil && info.UpdateFile != "" {
		if rel, err := filepath.Rel(downloadsDir, info.UpdateFile); err == nil && !strings.HasPrefix(rel, "..") {
			_ = os.Remove(info.UpdateFile)
		}
	}
	_ = os.Remove(filepath.Join(downloadsDir, updateInfoFileName))
}
