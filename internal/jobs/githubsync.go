package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cameronopotter/cameron-personal-site-sub001/internal/storage"
	"github.com/cameronopotter/cameron-personal-site-sub001/internal/tasks"
	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

const defaultGitHubBaseURL = "https://api.github.com"

var errNoGitHubUser = errors.New("github username not configured")

// GitHubConfig configures the repository sync job.
type GitHubConfig struct {
	Username   string
	Token      string // optional; raises the API rate limit
	Timeout    time.Duration
	RatePerSec int
}

// GitHubSync fetches the configured user's public repositories and upserts
// them into the projects table.
type GitHubSync struct {
	cfg     GitHubConfig
	store   storage.Store
	log     logx.Logger
	client  *http.Client
	limiter *rate.Limiter

	// baseURL is overridden in tests.
	baseURL string
}

func NewGitHubSync(cfg GitHubConfig, store storage.Store, log logx.Logger) *GitHubSync {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &GitHubSync{
		cfg:     cfg,
		store:   store,
		log:     log,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		baseURL: defaultGitHubBaseURL,
	}
}

func (g *GitHubSync) Body() tasks.Body { return g.run }

// repoPayload is the subset of the GitHub repos response we keep.
type repoPayload struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Language    string     `json:"language"`
	Stars       int        `json:"stargazers_count"`
	PushedAt    *time.Time `json:"pushed_at"`
	Fork        bool       `json:"fork"`
	Archived    bool       `json:"archived"`
}

func (g *GitHubSync) run(ctx context.Context) (any, error) {
	if g.store == nil {
		return nil, storage.ErrDisabled
	}
	user := strings.TrimSpace(g.cfg.Username)
	if user == "" {
		return nil, errNoGitHubUser
	}

	repos, err := g.fetchRepos(ctx, user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	synced, skipped := 0, 0
	for _, r := range repos {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if r.Fork || r.Archived {
			skipped++
			continue
		}
		err := g.store.UpsertProject(ctx, storage.Project{
			Name:        r.Name,
			Description: r.Description,
			Language:    r.Language,
			Stars:       r.Stars,
			PushedAt:    r.PushedAt,
			SyncedAt:    now,
		})
		if err != nil {
			return nil, err
		}
		synced++
	}

	g.log.Debug("github sync finished",
		logx.String("user", user),
		logx.Int("synced", synced),
		logx.Int("skipped", skipped),
	)
	return map[string]any{"synced": synced, "skipped": skipped}, nil
}

func (g *GitHubSync) fetchRepos(ctx context.Context, user string) ([]repoPayload, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/users/%s/repos?per_page=100&sort=pushed", g.baseURL, user)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if tok := strings.TrimSpace(g.cfg.Token); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Keep the error short; GitHub error bodies can be large.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("github: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var repos []repoPayload
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		return nil, fmt.Errorf("github: decode response: %w", err)
	}
	return repos, nil
}
