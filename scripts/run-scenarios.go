// Command run-scenarios drives the update pipeline through the reference
// scenarios S1-S6 against an in-process mock server, adapted from the
// teacher's scripts/run-corpus.go: both load a fixed table of cases and
// print a pass/fail line per case, but this runner exercises the library
// in-process instead of shelling out to a built binary, since the pipeline
// here is a manifest format and state machine rather than a set of CLI
// flags to fuzz.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/peerio/updater/internal/fetch"
	"github.com/peerio/updater/internal/manifest"
	"github.com/peerio/updater/internal/model"
	"github.com/peerio/updater/internal/signify"
	"github.com/peerio/updater/internal/verify"
	"github.com/peerio/updater/pkg/updater"
)

type scenario struct {
	name string
	run  func() error
}

func main() {
	scenarios := []scenario{
		{"S1 signify round-trip", scenarioS1},
		{"S2 manifest newer-version", scenarioS2},
		{"S3 tamper detection", scenarioS3},
		{"S4 hash mismatch", scenarioS4},
		{"S5 redirect cap", scenarioS5},
		{"S6 pipeline happy path", scenarioS6},
	}

	failures := 0
	for _, s := range scenarios {
		err := s.run()
		status := "PASS"
		if err != nil {
			status = "FAIL"
			failures++
		}
		fmt.Printf("[%s] %s", status, s.name)
		if err != nil {
			fmt.Printf(": %v", err)
		}
		fmt.Println()
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func scenarioS1() error {
	pub, sec, err := signify.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	otherPub, _, err := signify.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate other keypair: %w", err)
	}

	sig, err := signify.Sign(sec, "Hello world")
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	if err := signify.Verify([]string{pub}, sig, "Hello world"); err != nil {
		return fmt.Errorf("verify with matching key: %w", err)
	}
	if err := signify.Verify([]string{otherPub}, sig, "Hello world"); err == nil {
		return fmt.Errorf("expected verify against a non-matching key to fail")
	}
	return nil
}

func scenarioS2() error {
	_, sec, err := signify.GenerateKeyPair()
	if err != nil {
		return err
	}
	text, err := manifest.Serialize(sec, model.Manifest{Data: map[string]string{"version": "1.2.3"}})
	if err != nil {
		return err
	}
	pub := extractPublicKey(sec)
	m, err := manifest.LoadFromString([]string{pub}, text)
	if err != nil {
		return err
	}

	cases := []struct {
		current string
		want    bool
	}{
		{"1.2.0", true},
		{"1.2.3", false},
		{"1.2.4", false},
	}
	for _, c := range cases {
		got, err := m.IsNewerVersionThan(c.current)
		if err != nil {
			return err
		}
		if got != c.want {
			return fmt.Errorf("IsNewerVersionThan(%q) = %v, want %v", c.current, got, c.want)
		}
	}
	return nil
}

func scenarioS3() error {
	_, sec, err := signify.GenerateKeyPair()
	if err != nil {
		return err
	}
	text, err := manifest.Serialize(sec, model.Manifest{Data: map[string]string{"version": "1.2.3"}})
	if err != nil {
		return err
	}
	pub := extractPublicKey(sec)

	tampered := strings.Replace(text, "version: 1.2.3", "version: 1.2.4", 1)
	if tampered == text {
		return fmt.Errorf("tamper substitution did not change the manifest text")
	}

	_, err = manifest.LoadFromString([]string{pub}, tampered)
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrInvalidSignature {
		return fmt.Errorf("LoadFromString on tampered body = %v, want InvalidSignature", err)
	}
	return nil
}

func scenarioS4() error {
	dir, err := os.MkdirTemp("", "peerio-scenario-s4-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := dir + "/test-file.txt"
	contents := []byte("Test file\nOK\n")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return err
	}
	sum := sha512.Sum512(contents)
	correct := hex.EncodeToString(sum[:])

	if err := verify.VerifyHash(correct, path); err != nil {
		return fmt.Errorf("verify with correct hash: %w", err)
	}
	if err := verify.VerifyHash("00"+correct[2:], path); err == nil {
		return fmt.Errorf("expected verify with incorrect hash to fail")
	}
	return nil
}

func scenarioS5() error {
	var ts *httptest.Server
	ts = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL+"/loop", http.StatusFound)
	}))
	defer ts.Close()

	f := fetch.New().WithTransport(ts.Client().Transport)
	_, err := f.Get(context.Background(), ts.URL+"/loop", "")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrTooManyRedirects {
		return fmt.Errorf("Get on a self-redirecting server = %v, want TooManyRedirects", err)
	}
	return nil
}

func scenarioS6() error {
	pub, sec, err := signify.GenerateKeyPair()
	if err != nil {
		return err
	}

	artifact := []byte("scenario s6 release artifact")
	sum := sha512.Sum512(artifact)
	hexSum := hex.EncodeToString(sum[:])

	var ts *httptest.Server
	ts = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifest.txt":
			data := map[string]string{}
			for _, tag := range []string{"mac", "windows", "linux-x64", "linux-arm64", "linux-ia32"} {
				data[tag+"-file"] = ts.URL + "/artifact"
				data[tag+"-size"] = fmt.Sprintf("%d", len(artifact))
				data[tag+"-sha512"] = hexSum
			}
			m := model.Manifest{Data: map[string]string{"version": "2.0.0"}}
			for k, v := range data {
				m.Data[k] = v
			}
			text, err := manifest.Serialize(sec, m)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Write([]byte(text))
		case "/artifact":
			w.Write(artifact)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	dir, err := os.MkdirTemp("", "peerio-scenario-s6-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	u, err := updater.New(updater.Config{
		CurrentVersion: "1.0.0",
		PublicKeys:     []string{pub},
		ManifestURLs:   []string{ts.URL + "/manifest.txt"},
		DownloadsDir:   dir,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var seen []model.EventKind
	go u.CheckForUpdates(ctx)

	var downloadedPath string
loop:
	for {
		select {
		case ev := <-u.Events():
			seen = append(seen, ev.Kind)
			if ev.Kind == model.EventError {
				return fmt.Errorf("unexpected error event: %v", ev.Err)
			}
			if ev.Kind == model.EventUpdateDownloaded {
				downloadedPath = ev.Path
				break loop
			}
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for update-downloaded; saw %v", seen)
		}
	}

	want := []model.EventKind{model.EventCheckingForUpdate, model.EventUpdateAvailable, model.EventUpdateDownloaded}
	if len(seen) != len(want) {
		return fmt.Errorf("event order = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			return fmt.Errorf("event order = %v, want %v", seen, want)
		}
	}

	info, err := os.Stat(downloadedPath)
	if err != nil {
		return fmt.Errorf("downloaded path %q does not exist: %w", downloadedPath, err)
	}
	if info.Size() != int64(len(artifact)) {
		return fmt.Errorf("downloaded size = %d, want %d", info.Size(), len(artifact))
	}
	return nil
}

func extractPublicKey(secretKeyB64 string) string {
	sk, err := signify.DecodeSecretKey(secretKeyB64)
	if err != nil {
		panic(err)
	}
	pub := sk.Key.Public().(ed25519.PublicKey)
	pk := signify.PublicKey{KeyNum: sk.KeyNum, Key: pub}
	return pk.Encode()
}
