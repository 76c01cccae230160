// Package github implements the "github:<owner>/<repo>" manifest reference
// resolution (spec §4.G fetchManifest): list releases, pick the
// semver-greatest tag, and return the manifest.txt asset's download URL.
// Grounded on the teacher's single-shot client (Get/TokenFromEnv/UserAgent)
// but generalized to use the shared Fetcher's retry/redirect/pagination
// policy instead of a bare http.Get.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/peerio/updater/internal/fetch"
	"github.com/peerio/updater/internal/model"
)

const defaultAPIBase = "https://api.github.com"

// Release is the subset of the GitHub release payload this resolver needs.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Asset is the subset of the GitHub release asset payload this resolver
// needs.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// TokenFromEnv returns a GitHub API token from the environment, if any, to
// raise the unauthenticated rate limit when polling for releases.
func TokenFromEnv() string {
	if tok := strings.TrimSpace(os.Getenv("PEERIO_UPDATER_GITHUB_TOKEN")); tok != "" {
		return tok
	}
	return strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
}

func apiBase() string {
	if base := strings.TrimSpace(os.Getenv("PEERIO_UPDATER_GITHUB_API_BASE")); base != "" {
		return strings.TrimRight(base, "/")
	}
	return defaultAPIBase
}

// ParseRef splits a "github:<owner>/<repo>" manifest reference into its
// owner and repo parts.
func ParseRef(ref string) (owner, repo string, ok bool) {
	rest, found := strings.CutPrefix(ref, "github:")
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ManifestAssetURL resolves a github: manifest reference to the
// browser_download_url of its "manifest.txt" asset (spec §4.G). When
// allowPrerelease is false, only /releases/latest is consulted; when true,
// every release is paged through and the semver-greatest tag_name wins.
// Returns ("", nil) when the best available release is not newer than
// currentVersion.
func ManifestAssetURL(ctx context.Context, f *fetch.Fetcher, ref, currentVersion string, allowPrerelease bool) (string, error) {
	owner, repo, ok := ParseRef(ref)
	if !ok {
		return "", model.Errf(model.ErrRequestFailed, "invalid github manifest reference %q", ref)
	}

	release, err := bestRelease(ctx, f, owner, repo, allowPrerelease)
	if err != nil {
		return "", err
	}
	if release == nil {
		return "", nil
	}

	current, curErr := semver.NewVersion(currentVersion)
	tag, tagErr := semver.NewVersion(strings.TrimPrefix(release.TagName, "v"))
	if curErr == nil && tagErr == nil && !tag.GreaterThan(current) {
		return "", nil
	}

	for _, asset := range release.Assets {
		if asset.Name == "manifest.txt" {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", model.Errf(model.ErrNotFound, "release %s has no manifest.txt asset", release.TagName)
}

func bestRelease(ctx context.Context, f *fetch.Fetcher, owner, repo string, allowPrerelease bool) (*Release, error) {
	f = f.WithBearerToken(TokenFromEnv())

	if !allowPrerelease {
		url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", apiBase(), owner, repo)
		var release Release
		if err := f.FetchJSON(ctx, url, &release); err != nil {
			return nil, err
		}
		return &release, nil
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases", apiBase(), owner, repo)
	pages, err := f.FetchAllJSONPages(ctx, url)
	if err != nil {
		return nil, err
	}

	var best *Release
	var bestVersion *semver.Version
	for _, raw := range pages {
		var release Release
		if err := json.Unmarshal(raw, &release); err != nil {
			continue
		}
		v, err := semver.NewVersion(strings.TrimPrefix(release.TagName, "v"))
		if err != nil {
			continue
		}
		if bestVersion == nil || v.GreaterThan(bestVersion) {
			r := release
			best = &r
			bestVersion = v
		}
	}
	return best, nil
}
