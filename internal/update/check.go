// Package update asks GitHub whether a newer SubMint release exists.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.github.com"

// Result holds the outcome of an update check.
type Result struct {
	Latest    string // latest version tag without the "v"
	Current   string
	UpdateURL string // release page
}

// NeedsUpdate returns true if the latest version is newer than current.
func (r *Result) NeedsUpdate() bool {
	return r != nil && compareVersions(r.Latest, r.Current) > 0
}

type ghRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker queries the releases API. The zero value talks to api.github.com.
type Checker struct {
	APIBase    string
	HTTPClient *http.Client
}

// Check compares the latest release of owner/repo with currentVersion. It
// returns nil on any failure so callers can ignore update checks safely.
func (c Checker) Check(ctx context.Context, owner, repo, currentVersion string) *Result {
	base := c.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 3 * time.Second}
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", strings.TrimRight(base, "/"), owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var rel ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil || rel.TagName == "" {
		return nil
	}

	return &Result{
		Latest:    strings.TrimPrefix(rel.TagName, "v"),
		Current:   strings.TrimPrefix(currentVersion, "v"),
		UpdateURL: rel.HTMLURL,
	}
}

// Check uses the default Checker.
func Check(ctx context.Context, owner, repo, currentVersion string) *Result {
	return Checker{}.Check(ctx, owner, repo, currentVersion)
}

// compareVersions compares two semver-ish strings (major.minor.patch).
// Returns >0 if a > b, <0 if a < b, 0 if equal.
func compareVersions(a, b string) int {
	ap := parseVersion(a)
	bp := parseVersion(b)
	for i := 0; i < 3; i++ {
		if ap[i] != bp[i] {
			return ap[i] - bp[i]
		}
	}
	return 0
}

// parseVersion splits "1.2.3" into [1, 2, 3]. Missing parts default to 0 and
// pre-release or build suffixes are ignored.
func parseVersion(v string) [3]int {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var parts [3]int
	for i, s := range strings.SplitN(v, ".", 3) {
		n, _ := strconv.Atoi(s)
		parts[i] = n
	}
	return parts
}
