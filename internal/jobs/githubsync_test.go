package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

const reposResponse = `[
	{"name": "site", "description": "personal site", "language": "Go", "stargazers_count": 12, "pushed_at": "2026-08-01T10:00:00Z"},
	{"name": "dotfiles", "description": null, "language": null, "stargazers_count": 3},
	{"name": "forked-lib", "language": "Go", "stargazers_count": 900, "fork": true},
	{"name": "old-blog", "language": "Ruby", "stargazers_count": 5, "archived": true}
]`

func TestGitHubSyncUpsertsProjects(t *testing.T) {
	st := openTestStore(t)

	var gotPath, gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reposResponse))
	}))
	defer srv.Close()

	g := NewGitHubSync(GitHubConfig{Username: "cameron", Token: "tok"}, st, logx.Nop())
	g.baseURL = srv.URL

	res, err := g.run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	summary := res.(map[string]any)
	if summary["synced"] != 2 || summary["skipped"] != 2 {
		t.Fatalf("summary = %v", summary)
	}

	if gotPath != "/users/cameron/repos" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if !strings.Contains(gotAccept, "github") {
		t.Fatalf("accept header = %q", gotAccept)
	}

	projects, err := st.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("projects = %+v", projects)
	}
	// Forks and archived repos never land.
	for _, p := range projects {
		if p.Name == "forked-lib" || p.Name == "old-blog" {
			t.Fatalf("unexpected project %q", p.Name)
		}
	}
	if projects[0].Name != "site" || projects[0].Stars != 12 || projects[0].PushedAt == nil {
		t.Fatalf("site project = %+v", projects[0])
	}
}

func TestGitHubSyncErrorStatus(t *testing.T) {
	st := openTestStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "rate limited"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGitHubSync(GitHubConfig{Username: "cameron"}, st, logx.Nop())
	g.baseURL = srv.URL

	_, err := g.run(context.Background())
	if err == nil {
		t.Fatal("expected error on 403")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("error %q does not mention the status", err)
	}
}

func TestGitHubSyncRequiresUsername(t *testing.T) {
	g := NewGitHubSync(GitHubConfig{}, openTestStore(t), logx.Nop())
	if _, err := g.run(context.Background()); err != errNoGitHubUser {
		t.Fatalf("err = %v", err)
	}
}
