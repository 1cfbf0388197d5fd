package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v70/github"
)

func TestParseRemote(t *testing.T) {
	cases := []struct {
		name      string
		remote    string
		wantOwner string
		wantRepo  string
		wantOK    bool
	}{
		{"https with git suffix", "https://github.com/acme/widgets.git", "acme", "widgets", true},
		{"https trailing slash", "https://github.com/acme/widgets/", "acme", "widgets", true},
		{"no scheme", "github.com/acme/widgets", "acme", "widgets", true},
		{"too few segments", "github.com/acme", "", "", false},
		{"bare host", "github.com", "", "", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			owner, repo, ok := ParseRemote(c.remote)
			if ok != c.wantOK {
				t.Fatalf("expected ok=%v, got ok=%v", c.wantOK, ok)
			}
			if ok && (owner != c.wantOwner || repo != c.wantRepo) {
				t.Errorf("expected %s/%s, got %s/%s", c.wantOwner, c.wantRepo, owner, repo)
			}
		})
	}
}

func testPoller(t *testing.T, srv *httptest.Server) *Poller {
	t.Helper()
	client := github.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base
	client.UserAgent = "myloadbalancer-orchestrator"
	return &Poller{client: client}
}

func TestGetLatestReturnsRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tag_name": "v1.2.3", "name": "v1.2.3", "html_url": "https://example.com/v1.2.3"}`))
	}))
	defer srv.Close()

	p := testPoller(t, srv)
	rel := p.GetLatest(context.Background(), "github.com/acme/widgets")
	if rel == nil {
		t.Fatal("expected a release")
	}
	if rel.TagName != "v1.2.3" {
		t.Errorf("expected tag v1.2.3, got %s", rel.TagName)
	}
}

func TestGetLatestReturnsNilOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := testPoller(t, srv)
	if rel := p.GetLatest(context.Background(), "github.com/acme/widgets"); rel != nil {
		t.Errorf("expected nil on 404, got %v", rel)
	}
}

func TestGetLatestReturnsNilOnUnparsableRemote(t *testing.T) {
	p := &Poller{client: github.NewClient(nil)}
	if rel := p.GetLatest(context.Background(), "not-a-remote"); rel != nil {
		t.Errorf("expected nil for unparsable remote, got %v", rel)
	}
}

func TestCheckForUpdateSkipsSameVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tag_name": "v1.0.0"}`))
	}))
	defer srv.Close()

	p := testPoller(t, srv)
	if rel := p.CheckForUpdate(context.Background(), "github.com/acme/widgets", "v1.0.0"); rel != nil {
		t.Errorf("expected nil when tag matches current version, got %v", rel)
	}
}

func TestCheckForUpdateReturnsNewerVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tag_name": "v2.0.0"}`))
	}))
	defer srv.Close()

	p := testPoller(t, srv)
	rel := p.CheckForUpdate(context.Background(), "github.com/acme/widgets", "v1.0.0")
	if rel == nil || rel.TagName != "v2.0.0" {
		t.Errorf("expected v2.0.0, got %v", rel)
	}
}
