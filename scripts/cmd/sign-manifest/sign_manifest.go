// Command sign-manifest builds and signs a release manifest, adapted from
// the teacher's scripts/cmd/generate-checksums build tool: both take a
// flag-driven set of knobs and write a single deterministic artifact, rather
// than shelling out to external signing tools. Where that tool reads a
// release directory, this one reads a JSON description of the release
// (-input).
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/peerio/updater/internal/manifest"
	"github.com/peerio/updater/internal/model"
)

type platformInput struct {
	File    string `json:"file"`
	Size    int64  `json:"size"`
	SHA512  string `json:"sha512"`
	Minisig string `json:"minisig,omitempty"`
}

type manifestInput struct {
	Version   string                   `json:"version"`
	Urgency   string                   `json:"urgency,omitempty"`
	Date      string                   `json:"date,omitempty"`
	Changelog string                   `json:"changelog,omitempty"`
	Platforms map[string]platformInput `json:"platforms"`
}

func main() {
	inputPath := flag.String("input", "", "path to a JSON description of the release (version, urgency, platforms)")
	secretKeyFlag := flag.String("secret-key", "", "base64 signify secret key (overrides -secret-key-env)")
	secretKeyEnv := flag.String("secret-key-env", "PEERIO_UPDATER_SECRET_KEY", "environment variable holding the base64 signify secret key")
	outputPath := flag.String("output", "", "output path for the signed manifest (default: stdout)")
	flag.Parse()

	if err := run(*inputPath, *secretKeyFlag, *secretKeyEnv, *outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(inputPath, secretKeyFlag, secretKeyEnv, outputPath string) error {
	if inputPath == "" {
		return errors.New("-input is required")
	}

	secretKey := secretKeyFlag
	if secretKey == "" {
		secretKey = os.Getenv(secretKeyEnv)
	}
	if secretKey == "" {
		return fmt.Errorf("no secret key: set -secret-key or %s", secretKeyEnv)
	}

	data, err := os.ReadFile(inputPath) // #nosec G304 -- build-tool input path, operator controlled
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	var in manifestInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse %s: %w", inputPath, err)
	}
	if strings.TrimSpace(in.Version) == "" {
		return errors.New("input is missing version")
	}
	if len(in.Platforms) == 0 {
		return errors.New("input has no platform entries")
	}

	m := model.Manifest{Data: map[string]string{
		"version": in.Version,
	}}
	if in.Urgency != "" {
		m.Data["urgency"] = in.Urgency
	}
	if in.Date != "" {
		m.Data["date"] = in.Date
	}
	if in.Changelog != "" {
		m.Data["changelog"] = in.Changelog
	}
	for platform, entry := range in.Platforms {
		m.Data[platform+"-file"] = entry.File
		m.Data[platform+"-size"] = fmt.Sprintf("%d", entry.Size)
		m.Data[platform+"-sha512"] = entry.SHA512
		if entry.Minisig != "" {
			m.Data[platform+"-minisig"] = entry.Minisig
		}
	}

	text, err := manifest.Serialize(secretKey, m)
	if err != nil {
		return fmt.Errorf("sign manifest: %w", err)
	}

	if outputPath == "" {
		_, err := os.Stdout.WriteString(text)
		return err
	}
	return os.WriteFile(outputPath, []byte(text), 0o644)
}
