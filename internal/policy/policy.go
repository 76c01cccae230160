// Package policy implements the install-decision guardrails layered on top
// of the core version comparison (SPEC_FULL supplemented feature #1): given
// the running version and a candidate manifest, decide whether to proceed,
// skip, refuse, reinstall, or downgrade. Adapted from the teacher's
// pkg/update/decision.go, swapping its hand-rolled semver comparison for
// Masterminds/semver/v3 (already pulled in for manifest version checks) so
// the policy layer and the core Manifest methods agree on what "newer"
// means.
package policy

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

type Decision string

const (
	DecisionProceed   Decision = "proceed"
	DecisionSkip      Decision = "skip"
	DecisionRefuse    Decision = "refuse"
	DecisionReinstall Decision = "reinstall"
	DecisionDowngrade Decision = "downgrade"
)

// Options tunes DecideInstall's guardrails.
type Options struct {
	// ExplicitTarget allows a downgrade decision when the candidate version
	// is older than current (the caller asked for this version by name).
	ExplicitTarget bool
	// Force reinstalls an identical version or crosses a major version
	// boundary that would otherwise be refused.
	Force bool
	// AllowMajorJump permits an upgrade across a major version boundary
	// without Force (mirrors model.Configuration.AllowMajorJump).
	AllowMajorJump bool
}

// DecideInstall compares current against candidate and returns the
// guardrail decision plus a human-readable explanation.
func DecideInstall(current, candidate string, opts Options) (Decision, string, error) {
	curV, err := semver.NewVersion(current)
	if err != nil {
		return "", "", fmt.Errorf("current version %q: %w", current, err)
	}
	candV, err := semver.NewVersion(candidate)
	if err != nil {
		return "", "", fmt.Errorf("candidate version %q: %w", candidate, err)
	}

	crossesMajor := curV.Major() != candV.Major()

	switch {
	case candV.Equal(curV):
		if opts.Force {
			return DecisionReinstall, fmt.Sprintf("reinstalling %s", candV), nil
		}
		return DecisionSkip, fmt.Sprintf("already at %s", curV), nil

	case candV.GreaterThan(curV):
		if crossesMajor && !opts.Force && !opts.AllowMajorJump {
			return DecisionRefuse, fmt.Sprintf("refusing update across major versions (%s -> %s); force or allow-major-jump required", curV, candV), nil
		}
		return DecisionProceed, fmt.Sprintf("updating %s -> %s", curV, candV), nil

	default: // candV < curV
		if !opts.ExplicitTarget {
			return DecisionSkip, fmt.Sprintf("already at %s (candidate %s is older)", curV, candV), nil
		}
		if crossesMajor && !opts.Force {
			return DecisionRefuse, fmt.Sprintf("refusing downgrade across major versions (%s -> %s); force required", curV, candV), nil
		}
		return DecisionDowngrade, fmt.Sprintf("downgrading %s -> %s", curV, candV), nil
	}
}
