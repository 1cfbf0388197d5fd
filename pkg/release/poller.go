// Package release polls an upstream release registry (GitHub-shaped
// releases API) for the latest tag of a deployment's tracked repository.
package release

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/go-github/v70/github"
)

// Release is the subset of the upstream release object the orchestrator
// cares about.
type Release struct {
	TagName     string
	Name        string
	PublishedAt time.Time
	HTMLURL     string
}

// Poller queries the upstream releases API.
type Poller struct {
	client *github.Client
}

// New returns a Poller using a finite-timeout HTTP client and the
// orchestrator's own User-Agent, matching the Accept/User-Agent contract
// the spec requires.
func New() *Poller {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	client := github.NewClient(httpClient)
	client.UserAgent = "myloadbalancer-orchestrator"
	return &Poller{client: client}
}

// ParseRemote extracts (owner, repo) from a repository URL, stripping
// scheme, host, a trailing ".git", and trailing slash. Fewer than two path
// segments yields ok=false.
func ParseRemote(remoteURL string) (owner, repo string, ok bool) {
	s := remoteURL
	if idx := strings.Index(s, "://"); idx != -1 {
		s = s[idx+3:]
	}
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	if idx := strings.Index(s, "/"); idx != -1 {
		s = s[idx+1:]
	} else {
		return "", "", false
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// GetLatest queries the upstream "latest release" endpoint. On 404 it logs
// and returns nil (no releases published yet); on any other non-2xx it
// returns nil with a warning; transport errors behave the same way — a
// release lookup failure never escalates past a log line.
func (p *Poller) GetLatest(ctx context.Context, remoteURL string) *Release {
	owner, repo, ok := ParseRemote(remoteURL)
	if !ok {
		glog.Warningf("release poll: could not parse owner/repo from %s", remoteURL)
		return nil
	}

	rel, resp, err := p.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			glog.Infof("release poll: no releases for %s/%s", owner, repo)
			return nil
		}
		glog.Warningf("release poll: %s/%s: %v", owner, repo, err)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		glog.Warningf("release poll: %s/%s returned %d", owner, repo, resp.StatusCode)
		return nil
	}

	out := &Release{
		TagName: rel.GetTagName(),
		Name:    rel.GetName(),
		HTMLURL: rel.GetHTMLURL(),
	}
	if rel.PublishedAt != nil {
		out.PublishedAt = rel.PublishedAt.Time
	}
	return out
}

// CheckForUpdate returns the latest release iff its tag differs from
// currentVersion (literal string comparison, no semver parsing), or nil
// when there is nothing newer.
func (p *Poller) CheckForUpdate(ctx context.Context, remoteURL, currentVersion string) *Release {
	latest := p.GetLatest(ctx, remoteURL)
	if latest == nil {
		return nil
	}
	if currentVersion != "" && latest.TagName == currentVersion {
		return nil
	}
	return latest
}
