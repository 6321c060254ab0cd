// Package repo defines repository identities and per-repository policies.
//
// A RemoteRepository is where artifacts come from; a LocalRepository is the
// on-disk cache they are fetched into. Policies control how stale a local
// copy may become before a remote recheck (update policy) and how checksum
// mismatches are handled (checksum policy).
package repo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/quarrybuild/quarry/pkg/errors"
)

// Update policies.
const (
	UpdateAlways   = "always"
	UpdateDaily    = "daily"
	UpdateNever    = "never"
	updateInterval = "interval" // "interval:<minutes>"
)

// Checksum policies.
const (
	ChecksumFail   = "fail"   // mismatch fails the transfer
	ChecksumWarn   = "warn"   // mismatch is reported, transfer kept
	ChecksumIgnore = "ignore" // mismatch is silent
)

// Policy carries a repository's update and checksum policy strings.
// Zero values mean "daily" and "warn" respectively.
type Policy struct {
	Update   string
	Checksum string
}

// EffectiveUpdate returns the update policy, defaulting to daily.
func (p Policy) EffectiveUpdate() string {
	if p.Update == "" {
		return UpdateDaily
	}
	return p.Update
}

// EffectiveChecksum returns the checksum policy, defaulting to warn.
func (p Policy) EffectiveChecksum() string {
	if p.Checksum == "" {
		return ChecksumWarn
	}
	return p.Checksum
}

// ValidateUpdatePolicy checks that policy is one of always, daily, never or
// interval:<minutes> with a positive minute count.
func ValidateUpdatePolicy(policy string) error {
	switch policy {
	case "", UpdateAlways, UpdateDaily, UpdateNever:
		return nil
	}
	if minutes, ok := strings.CutPrefix(policy, updateInterval+":"); ok {
		if n, err := strconv.Atoi(minutes); err == nil && n > 0 {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidConfig, "unknown update policy %q", policy)
}

// ValidateChecksumPolicy checks that policy is fail, warn or ignore.
func ValidateChecksumPolicy(policy string) error {
	switch policy {
	case "", ChecksumFail, ChecksumWarn, ChecksumIgnore:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidConfig, "unknown checksum policy %q", policy)
}

// IntervalMinutes extracts the minute count from an interval policy.
// It returns ok=false for any other policy string.
func IntervalMinutes(policy string) (int, bool) {
	minutes, found := strings.CutPrefix(policy, updateInterval+":")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(minutes)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Remote identifies a remote artifact repository.
type Remote struct {
	ID     string // unique repository id (e.g. "central")
	URL    string // base URL, http(s):// or file://
	Policy Policy
}

// String formats the repository for logs.
func (r Remote) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.URL)
}

// Local identifies the local on-disk repository.
type Local struct {
	Base string // base directory holding cached artifacts and markers
}
