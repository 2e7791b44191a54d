// pkg/release/release.go

package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	goversion "github.com/hashicorp/go-version"
)

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
	Size int64  `json:"size"`
}

// Release is the remote release metadata anvil consumes: a tag plus its
// assets. Nothing else from the index is read.
type Release struct {
	Tag    string  `json:"tag_name"`
	Assets []Asset `json:"assets"`
}

// AssetNamed finds an asset by exact name.
func (r *Release) AssetNamed(name string) (*Asset, bool) {
	for i := range r.Assets {
		if r.Assets[i].Name == name {
			return &r.Assets[i], true
		}
	}
	return nil, false
}

// Version parses the release tag as a semantic version, tolerating a "v"
// prefix.
func (r *Release) Version() (*goversion.Version, error) {
	return goversion.NewVersion(strings.TrimPrefix(r.Tag, "v"))
}

// Index is the remote release metadata collaborator.
type Index interface {
	LatestRelease(ctx context.Context, repo string) (*Release, error)
}

// GitHubIndex queries the GitHub releases API. Only the latest-release
// endpoint is used; this is the lightweight metadata query that replaces
// cloning a repository just to read one version string.
type GitHubIndex struct {
	BaseURL string
	Client  *http.Client
}

// NewGitHubIndex returns an index client against api.github.com.
func NewGitHubIndex() *GitHubIndex {
	return &GitHubIndex{
		BaseURL: "https://api.github.com",
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GitHubIndex) LatestRelease(ctx context.Context, repo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", g.BaseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cerr.Wrap(err, "building release index request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, cerr.Wrapf(err, "querying release index for %s", repo)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, cerr.Newf("no releases found for %s", repo)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, cerr.Newf("release index returned %d for %s: %s",
			resp.StatusCode, repo, strings.TrimSpace(string(body)))
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, cerr.Wrap(err, "decoding release metadata")
	}
	if rel.Tag == "" {
		return nil, cerr.Newf("release metadata for %s has no tag", repo)
	}
	return &rel, nil
}
