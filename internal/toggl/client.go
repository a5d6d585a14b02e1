// Package toggl reads stopped time entries from the Toggl Track API.
package toggl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Afrawles/weekreflect/internal/executor"
	"github.com/Afrawles/weekreflect/internal/report"
)

const (
	baseURL         = "https://api.track.toggl.com/api/v9"
	serviceName     = "toggl"
	defaultPageSize = 200
	maxPages        = 50
)

// Reader talks to the Toggl Track v9 API with basic token auth.
type Reader struct {
	apiToken    string
	baseURL     string
	workspaceID int64
	pageSize    int
	httpClient  *http.Client
	exec        *executor.Executor
	projects    *ProjectCache
	logger      *zap.Logger
}

type Option func(*Reader)

func WithBaseURL(u string) Option {
	return func(c *Reader) { c.baseURL = u }
}

// WithWorkspace keeps only entries from one workspace.
func WithWorkspace(id int64) Option {
	return func(c *Reader) { c.workspaceID = id }
}

// WithPageSize sets how many entries a full page holds. A shorter page ends paging.
func WithPageSize(n int) Option {
	return func(c *Reader) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithExecutor(e *executor.Executor) Option {
	return func(c *Reader) { c.exec = e }
}

// WithProjectCache shares a project-name cache across calls of one run.
func WithProjectCache(pc *ProjectCache) Option {
	return func(c *Reader) { c.projects = pc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Reader) { c.logger = logger }
}

func NewReader(apiToken string, timeout time.Duration, opts ...Option) *Reader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Reader{
		apiToken:   apiToken,
		baseURL:    baseURL,
		pageSize:   defaultPageSize,
		httpClient: &http.Client{Timeout: timeout},
		exec:       executor.New(serviceName),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.projects == nil {
		c.projects = NewProjectCache()
	}
	return c
}

type apiTimeEntry struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	ProjectID   *int64     `json:"project_id"`
	ProjectName string     `json:"project_name"`
	Description string     `json:"description"`
	Start       time.Time  `json:"start"`
	Stop        *time.Time `json:"stop"`
	Duration    int64      `json:"duration"`
	Tags        []string   `json:"tags"`
}

func (e apiTimeEntry) running() bool {
	return e.Stop == nil || e.Duration < 0
}

type apiProject struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Fetch pages backwards from the end of the range with a "before" cursor.
// Entries arrive newest first, so paging stops as soon as a page reaches
// past the start of the range or brings nothing new; the range is then
// enforced client side.
func (c *Reader) Fetch(ctx context.Context, dr report.DateRange) ([]report.TimeEntry, error) {
	var raw []apiTimeEntry
	seen := make(map[int64]struct{})
	cursor := dr.End.Add(time.Second)

	for page := 0; page < maxPages; page++ {
		entries, err := c.fetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}

		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Start.After(entries[j].Start)
		})
		added := 0
		for _, e := range entries {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			raw = append(raw, e)
			added++
		}

		oldest := entries[len(entries)-1].Start
		if len(entries) < c.pageSize || added == 0 || oldest.Before(dr.Start) {
			break
		}
		// The cursor overlaps the oldest second so entries sharing that start
		// are fetched again; seen drops the repeats.
		cursor = oldest.Add(time.Second)
	}

	out := make([]report.TimeEntry, 0, len(raw))
	for _, e := range raw {
		if e.running() || !dr.Contains(e.Start) {
			continue
		}
		if c.workspaceID != 0 && e.WorkspaceID != c.workspaceID {
			continue
		}
		out = append(out, report.TimeEntry{
			ID:              strconv.FormatInt(e.ID, 10),
			Description:     e.Description,
			Project:         c.projectName(ctx, e),
			Start:           e.Start.UTC(),
			End:             e.Stop.UTC(),
			DurationSeconds: e.Duration,
			Tags:            e.Tags,
		})
	}

	c.logger.Info("time entries fetched", zap.Int("entries", len(out)), zap.Int("scanned", len(raw)))
	return out, nil
}

func (c *Reader) fetchPage(ctx context.Context, before time.Time) ([]apiTimeEntry, error) {
	q := url.Values{}
	q.Set("before", before.UTC().Format(time.RFC3339))
	q.Set("meta", "true")
	endpoint := c.baseURL + "/me/time_entries?" + q.Encode()

	return executor.Execute(ctx, c.exec, func(ctx context.Context) ([]apiTimeEntry, error) {
		var entries []apiTimeEntry
		if err := c.get(ctx, endpoint, "time entries", &entries); err != nil {
			return nil, err
		}
		return entries, nil
	})
}

// projectName prefers the name embedded by meta=true and falls back to the
// per-run cache, which looks projects up once.
func (c *Reader) projectName(ctx context.Context, e apiTimeEntry) string {
	if e.ProjectName != "" {
		return e.ProjectName
	}
	if e.ProjectID == nil {
		return ""
	}
	name, err := c.projects.Lookup(ctx, e.WorkspaceID, *e.ProjectID, c.fetchProject)
	if err != nil {
		c.logger.Debug("project lookup failed", zap.Int64("project_id", *e.ProjectID), zap.Error(err))
		return ""
	}
	return name
}

func (c *Reader) fetchProject(ctx context.Context, workspaceID, projectID int64) (string, error) {
	endpoint := fmt.Sprintf("%s/workspaces/%d/projects/%d", c.baseURL, workspaceID, projectID)
	return executor.Execute(ctx, c.exec, func(ctx context.Context) (string, error) {
		var p apiProject
		if err := c.get(ctx, endpoint, fmt.Sprintf("project %d", projectID), &p); err != nil {
			return "", err
		}
		return p.Name, nil
	})
}

func (c *Reader) get(ctx context.Context, endpoint, resource string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiToken, "api_token")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return executor.ClassifyTransport(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return executor.ClassifyTransport(serviceName, err)
	}

	if resp.StatusCode != http.StatusOK {
		ce := executor.ClassifyStatus(serviceName, resp.StatusCode, body, resp.Header)
		ce.Resource = resource
		// Toggl answers 402 when a workspace feature or quota is exhausted.
		if resp.StatusCode == http.StatusPaymentRequired {
			ce.Kind = executor.KindRateLimited
		}
		return ce
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", resource, err)
	}
	return nil
}
