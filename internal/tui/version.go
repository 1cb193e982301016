package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ReleasesURL is where the latest published release is looked up.
const ReleasesURL = "https://api.github.com/repos/HE-Arc/Mind-vs-Wild/releases/latest"

const releaseTimeout = 5 * time.Second

// Release is the subset of a published release the client shows.
type Release struct {
	Tag string `json:"tag_name"`
	URL string `json:"html_url"`
}

// releaseMsg reports a release newer than the running build. A zero Tag means
// nothing to announce.
type releaseMsg struct {
	release Release
}

// checkVersion looks for a release newer than current in the background.
// Development builds skip the lookup.
func checkVersion(current, releasesURL string) tea.Cmd {
	if current == "" || current == "dev" || releasesURL == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		rel, err := LatestRelease(ctx, releasesURL)
		if err != nil || !IsNewerVersion(rel.Tag, current) {
			return releaseMsg{}
		}
		return releaseMsg{release: rel}
	}
}

// LatestRelease fetches the latest release published at releasesURL.
func LatestRelease(ctx context.Context, releasesURL string) (Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releasesURL, nil)
	if err != nil {
		return Release{}, fmt.Errorf("release lookup: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("release lookup: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("release lookup: HTTP %d", resp.StatusCode)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return Release{}, fmt.Errorf("release lookup: decode: %w", err)
	}
	if rel.Tag == "" {
		return Release{}, fmt.Errorf("release lookup: no tag")
	}
	return rel, nil
}

// semver is a major.minor.patch triple. Missing or non-numeric parts read as 0.
type semver [3]int

func parseSemver(v string) semver {
	var s semver
	parts := strings.SplitN(strings.TrimPrefix(v, "v"), ".", 3)
	for i, p := range parts {
		// drop pre-release and build suffixes: 1.2.3-rc1+abc
		if cut := strings.IndexAny(p, "-+"); cut >= 0 {
			p = p[:cut]
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		s[i] = n
	}
	return s
}

func (s semver) less(o semver) bool {
	for i := range s {
		if s[i] != o[i] {
			return s[i] < o[i]
		}
	}
	return false
}

// IsNewerVersion reports whether latest is a newer semver than current.
func IsNewerVersion(latest, current string) bool {
	return parseSemver(current).less(parseSemver(latest))
}
