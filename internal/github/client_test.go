package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afrawles/weekreflect/internal/executor"
	"github.com/Afrawles/weekreflect/internal/report"
)

func testRange() report.DateRange {
	return report.DateRange{
		Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC),
	}
}

func commitJSON(sha, message, date string) string {
	return fmt.Sprintf(`{"sha":%q,"html_url":"https://github.com/c/%s","commit":{"message":%q,"author":{"name":"dev","date":%q}}}`,
		sha, sha, message, date)
}

func fastExecutor() *executor.Executor {
	return executor.New(serviceName, executor.WithRetryConfig(executor.RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}))
}

func newTestReader(t *testing.T, srv *httptest.Server, opts ...Option) *Reader {
	t.Helper()
	opts = append([]Option{WithBaseURL(srv.URL), WithExecutor(fastExecutor())}, opts...)
	r, err := NewReader(context.Background(), "test-token", 5*time.Second, opts...)
	require.NoError(t, err)
	return r
}

type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, r.URL.Path+"?"+r.URL.RawQuery)
}

func (l *requestLog) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.paths {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

func TestNewReader_RequiresToken(t *testing.T) {
	_, err := NewReader(context.Background(), "", time.Second)
	assert.Error(t, err)
}

func TestFetch_FollowsLinkPagination(t *testing.T) {
	var log requestLog
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/repos/acme/api/commits", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/api/commits?page=2&per_page=2>; rel="next"`, srv.URL))
			fmt.Fprintf(w, "[%s,%s]",
				commitJSON("c1", "Add parser\n\nLonger body", "2024-03-05T10:00:00Z"),
				commitJSON("c2", "Fix bug", "2024-03-04T09:00:00Z"))
		case "2":
			fmt.Fprintf(w, "[%s]", commitJSON("c3", "Docs", "2024-03-06T12:00:00Z"))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	reader := newTestReader(t, srv, WithPerPage(2))
	records, err := reader.Fetch(context.Background(), []string{"acme/api"}, testRange())
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "c3", records[0].ID, "newest first")
	assert.Equal(t, 2, log.count("/repos/acme/api/commits"))

	var c1 report.ActivityRecord
	for _, r := range records {
		if r.ID == "c1" {
			c1 = r
		}
	}
	assert.Equal(t, "Add parser", c1.Title)
	assert.Equal(t, "Longer body", c1.Body)
	assert.Equal(t, "acme/api", c1.Group)
	assert.Equal(t, "https://github.com/c/c1", c1.URL)
}

func TestFetch_StopsOnShortPage(t *testing.T) {
	var log requestLog
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		// A next link is advertised but the page is already short.
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/api/commits?page=2>; rel="next"`, srv.URL))
		fmt.Fprintf(w, "[%s]", commitJSON("c1", "Only one", "2024-03-05T10:00:00Z"))
	}))
	defer srv.Close()

	reader := newTestReader(t, srv, WithPerPage(5))
	records, err := reader.Fetch(context.Background(), []string{"acme/api"}, testRange())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, log.count("/repos/"))
}

func TestFetch_FiltersOutOfRangeAndDuplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "[%s,%s,%s]",
			commitJSON("c1", "In range", "2024-03-05T10:00:00Z"),
			commitJSON("c1", "In range", "2024-03-05T10:00:00Z"),
			commitJSON("c2", "Too early", "2024-03-01T10:00:00Z"))
	}))
	defer srv.Close()

	reader := newTestReader(t, srv)
	records, err := reader.Fetch(context.Background(), []string{"acme/api"}, testRange())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c1", records[0].ID)
}

func TestFetch_PartialRepositoryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/repos/acme/missing/") {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprintf(w, "[%s]", commitJSON("c1", "Works", "2024-03-05T10:00:00Z"))
	}))
	defer srv.Close()

	reader := newTestReader(t, srv)
	records, err := reader.Fetch(context.Background(), []string{"acme/api", "acme/missing"}, testRange())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "acme/api", records[0].Group)
}

func TestFetch_AllRepositoriesFail(t *testing.T) {
	var log requestLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"message":"upstream"}`)
	}))
	defer srv.Close()

	reader := newTestReader(t, srv)
	_, err := reader.Fetch(context.Background(), []string{"acme/api", "acme/web"}, testRange())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 repositories failed")
	assert.True(t, executor.IsKind(err, executor.KindServiceUnavailable))
	assert.Equal(t, 2, log.count("/repos/acme/api/"), "one attempt plus one retry")
	assert.Equal(t, 2, log.count("/repos/acme/web/"))
}

func TestFetch_InvalidRepositoryName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	reader := newTestReader(t, srv)
	_, err := reader.Fetch(context.Background(), []string{"not-a-repo"}, testRange())
	require.Error(t, err)
	assert.True(t, executor.IsKind(err, executor.KindValidation))
}

func TestFetch_WithStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/api/commits/c1" {
			fmt.Fprint(w, `{"sha":"c1","stats":{"additions":120,"deletions":30,"total":150}}`)
			return
		}
		fmt.Fprintf(w, "[%s]", commitJSON("c1", "Big change", "2024-03-05T10:00:00Z"))
	}))
	defer srv.Close()

	reader := newTestReader(t, srv, WithStats(true))
	records, err := reader.Fetch(context.Background(), []string{"acme/api"}, testRange())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 120, records[0].Additions)
	assert.Equal(t, 30, records[0].Deletions)
	assert.Equal(t, 150, records[0].Size())
}

func TestClassify(t *testing.T) {
	reset := time.Now().Add(time.Minute)

	rateErr := &gh.RateLimitError{
		Rate:     gh.Rate{Limit: 5000, Reset: gh.Timestamp{Time: reset}},
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  "API rate limit exceeded",
	}
	err := classify(rateErr, nil, "acme/api")
	var ce *executor.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, executor.KindRateLimited, ce.Kind)
	assert.Equal(t, reset, ce.ResetAt)

	retryAfter := 5 * time.Second
	abuse := &gh.AbuseRateLimitError{Response: &http.Response{StatusCode: http.StatusForbidden}, RetryAfter: &retryAfter}
	require.ErrorAs(t, classify(abuse, nil, "acme/api"), &ce)
	assert.Equal(t, executor.KindRateLimited, ce.Kind)
	assert.Equal(t, retryAfter, ce.RetryAfter)

	unauthorized := &gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusUnauthorized}, Message: "Bad credentials"}
	require.ErrorAs(t, classify(unauthorized, nil, "acme/api"), &ce)
	assert.Equal(t, executor.KindUnauthorized, ce.Kind)
	assert.False(t, ce.Retryable())

	require.ErrorAs(t, classify(errors.New("dial tcp: refused"), nil, "acme/api"), &ce)
	assert.Equal(t, executor.KindNetwork, ce.Kind)

	assert.ErrorIs(t, classify(context.Canceled, nil, "acme/api"), context.Canceled)
}
