// Package github reads commit activity from GitHub repositories.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/Afrawles/weekreflect/internal/executor"
	"github.com/Afrawles/weekreflect/internal/report"
)

const (
	serviceName        = "github"
	defaultPerPage     = 100
	maxConcurrentRepos = 4
)

// Reader lists commits across repositories.
type Reader struct {
	client       *gh.Client
	exec         *executor.Executor
	logger       *zap.Logger
	perPage      int
	author       string
	includeStats bool
}

type Option func(*Reader) error

// WithBaseURL points the client at a different API root, such as GitHub
// Enterprise or a test server.
func WithBaseURL(raw string) Option {
	return func(r *Reader) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		r.client.BaseURL = u
		return nil
	}
}

func WithExecutor(e *executor.Executor) Option {
	return func(r *Reader) error {
		r.exec = e
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reader) error {
		r.logger = logger
		return nil
	}
}

func WithPerPage(n int) Option {
	return func(r *Reader) error {
		if n > 0 {
			r.perPage = n
		}
		return nil
	}
}

// WithAuthor restricts commits to one author login or email.
func WithAuthor(author string) Option {
	return func(r *Reader) error {
		r.author = author
		return nil
	}
}

// WithStats fetches additions and deletions for every commit.
func WithStats(enabled bool) Option {
	return func(r *Reader) error {
		r.includeStats = enabled
		return nil
	}
}

// NewReader creates a GitHub reader with token authentication.
func NewReader(ctx context.Context, token string, timeout time.Duration, opts ...Option) (*Reader, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	if timeout > 0 {
		tc.Timeout = timeout
	}

	r := &Reader{
		client:  gh.NewClient(tc),
		exec:    executor.New(serviceName),
		logger:  zap.NewNop(),
		perPage: defaultPerPage,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Fetch queries every repository concurrently. It fails only when every
// repository failed; otherwise failed repositories are logged and dropped.
func (r *Reader) Fetch(ctx context.Context, repos []string, dr report.DateRange) ([]report.ActivityRecord, error) {
	if len(repos) == 0 {
		return nil, fmt.Errorf("no repositories configured")
	}

	results := make([][]report.ActivityRecord, len(repos))
	errs := make([]error, len(repos))

	var g errgroup.Group
	g.SetLimit(maxConcurrentRepos)
	for i, repo := range repos {
		g.Go(func() error {
			results[i], errs[i] = r.fetchRepo(ctx, repo, dr)
			return nil
		})
	}
	_ = g.Wait()

	var all []report.ActivityRecord
	var failed []error
	for i, repo := range repos {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("%s: %w", repo, errs[i]))
			r.logger.Warn("repository skipped", zap.String("repo", repo), zap.Error(errs[i]))
			continue
		}
		all = append(all, results[i]...)
	}

	if len(failed) == len(repos) {
		return nil, fmt.Errorf("all %d repositories failed: %w", len(repos), errors.Join(failed...))
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	r.logger.Info("commits fetched",
		zap.Int("repos", len(repos)),
		zap.Int("failed_repos", len(failed)),
		zap.Int("commits", len(all)),
	)
	return all, nil
}

type commitPage struct {
	commits  []*gh.RepositoryCommit
	nextPage int
}

// fetchRepo follows the Link rel="next" header until it runs out or a page
// comes back short.
func (r *Reader) fetchRepo(ctx context.Context, fullName string, dr report.DateRange) ([]report.ActivityRecord, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return nil, &executor.ClassifiedError{
			Service:  serviceName,
			Kind:     executor.KindValidation,
			Resource: fullName,
			Message:  "repository must be owner/name",
		}
	}

	opts := &gh.CommitsListOptions{
		Author:      r.author,
		Since:       dr.Start,
		Until:       dr.End,
		ListOptions: gh.ListOptions{PerPage: r.perPage},
	}

	seen := make(map[string]struct{})
	var records []report.ActivityRecord

	for {
		page, err := executor.Execute(ctx, r.exec, func(ctx context.Context) (commitPage, error) {
			commits, resp, err := r.client.Repositories.ListCommits(ctx, owner, name, opts)
			if err != nil {
				return commitPage{}, classify(err, resp, fullName)
			}
			return commitPage{commits: commits, nextPage: resp.NextPage}, nil
		})
		if err != nil {
			return nil, err
		}

		for _, c := range page.commits {
			sha := c.GetSHA()
			if _, dup := seen[sha]; dup {
				continue
			}
			seen[sha] = struct{}{}

			rec := toRecord(c, fullName)
			if !dr.Contains(rec.Timestamp) {
				continue
			}
			if r.includeStats {
				r.addStats(ctx, owner, name, &rec)
			}
			records = append(records, rec)
		}

		if page.nextPage == 0 || len(page.commits) < r.perPage {
			break
		}
		opts.Page = page.nextPage
	}

	return records, nil
}

// addStats fills line counts. A failure only costs the stats, not the record.
func (r *Reader) addStats(ctx context.Context, owner, name string, rec *report.ActivityRecord) {
	full, err := executor.Execute(ctx, r.exec, func(ctx context.Context) (*gh.RepositoryCommit, error) {
		c, resp, err := r.client.Repositories.GetCommit(ctx, owner, name, rec.ID, nil)
		if err != nil {
			return nil, classify(err, resp, rec.Group+"@"+rec.ID)
		}
		return c, nil
	})
	if err != nil {
		r.logger.Debug("commit stats unavailable", zap.String("sha", rec.ID), zap.Error(err))
		return
	}
	rec.Additions = full.GetStats().GetAdditions()
	rec.Deletions = full.GetStats().GetDeletions()
}

func toRecord(c *gh.RepositoryCommit, repo string) report.ActivityRecord {
	commit := c.GetCommit()
	title, body, _ := strings.Cut(commit.GetMessage(), "\n")

	ts := commit.GetAuthor().GetDate().Time
	if ts.IsZero() {
		ts = commit.GetCommitter().GetDate().Time
	}

	return report.ActivityRecord{
		ID:        c.GetSHA(),
		Title:     strings.TrimSpace(title),
		Body:      strings.TrimSpace(body),
		Timestamp: ts.UTC(),
		Group:     repo,
		State:     "committed",
		Additions: c.GetStats().GetAdditions(),
		Deletions: c.GetStats().GetDeletions(),
		URL:       c.GetHTMLURL(),
	}
}
