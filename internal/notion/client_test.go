package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afrawles/weekreflect/internal/executor"
)

func fastExecutor() *executor.Executor {
	return executor.New(serviceName, executor.WithRetryConfig(executor.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}))
}

type recordedCall struct {
	method string
	path   string
	body   map[string]json.RawMessage
}

type fakeNotion struct {
	mu       sync.Mutex
	calls    []recordedCall
	failWith int
	failBody string
	failures int
}

func (f *fakeNotion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.calls = append(f.calls, recordedCall{method: r.Method, path: r.URL.Path, body: body})

	if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("Notion-Version") != apiVersion {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`)
		return
	}
	if f.failures > 0 {
		f.failures--
		w.WriteHeader(f.failWith)
		fmt.Fprint(w, f.failBody)
		return
	}

	if r.URL.Path == "/pages" {
		fmt.Fprint(w, `{"object":"page","id":"page-1","url":"https://www.notion.so/page-1"}`)
		return
	}
	fmt.Fprint(w, `{"object":"list","results":[]}`)
}

func (f *fakeNotion) childCount(i int) int {
	var children []json.RawMessage
	_ = json.Unmarshal(f.calls[i].body["children"], &children)
	return len(children)
}

func paragraphs(n int) []Block {
	blocks := make([]Block, n)
	for i := range blocks {
		blocks[i] = Paragraph(fmt.Sprintf("line %d", i))
	}
	return blocks
}

func TestCreatePage_SingleRequest(t *testing.T) {
	fake := &fakeNotion{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient("secret", time.Second, WithBaseURL(srv.URL), WithExecutor(fastExecutor()))
	page, err := c.CreatePage(context.Background(), "parent-1", "Week 10", paragraphs(3))
	require.NoError(t, err)
	assert.Equal(t, "page-1", page.ID)
	assert.Equal(t, "https://www.notion.so/page-1", page.URL)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, http.MethodPost, fake.calls[0].method)
	assert.JSONEq(t, `{"page_id":"parent-1"}`, string(fake.calls[0].body["parent"]))
	assert.Contains(t, string(fake.calls[0].body["properties"]), "Week 10")
	assert.Equal(t, 3, fake.childCount(0))
}

func TestCreatePage_ChunksChildren(t *testing.T) {
	fake := &fakeNotion{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient("secret", time.Second, WithBaseURL(srv.URL), WithExecutor(fastExecutor()))
	_, err := c.CreatePage(context.Background(), "parent-1", "Week 10", paragraphs(250))
	require.NoError(t, err)

	require.Len(t, fake.calls, 3)
	assert.Equal(t, 100, fake.childCount(0))
	assert.Equal(t, http.MethodPatch, fake.calls[1].method)
	assert.Equal(t, "/blocks/page-1/children", fake.calls[1].path)
	assert.Equal(t, 100, fake.childCount(1))
	assert.Equal(t, 50, fake.childCount(2))
	assert.Contains(t, string(fake.calls[2].body["children"]), "line 249")
}

func TestCreatePage_Unauthorized(t *testing.T) {
	fake := &fakeNotion{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient("wrong", time.Second, WithBaseURL(srv.URL), WithExecutor(fastExecutor()))
	_, err := c.CreatePage(context.Background(), "parent-1", "Week 10", nil)
	require.Error(t, err)

	var ce *executor.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, executor.KindUnauthorized, ce.Kind)
	assert.Contains(t, ce.Message, "API token is invalid")
	assert.Len(t, fake.calls, 1)
}

func TestCreatePage_ParentNotShared(t *testing.T) {
	fake := &fakeNotion{
		failWith: http.StatusNotFound,
		failBody: `{"object":"error","status":404,"code":"object_not_found","message":"Could not find page"}`,
		failures: 1,
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient("secret", time.Second, WithBaseURL(srv.URL), WithExecutor(fastExecutor()))
	_, err := c.CreatePage(context.Background(), "parent-1", "Week 10", nil)
	assert.True(t, executor.IsKind(err, executor.KindNotFound))
}

func TestCreatePage_RetriesRateLimit(t *testing.T) {
	fake := &fakeNotion{
		failWith: http.StatusTooManyRequests,
		failBody: `{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`,
		failures: 1,
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient("secret", time.Second, WithBaseURL(srv.URL), WithExecutor(fastExecutor()))
	page, err := c.CreatePage(context.Background(), "parent-1", "Week 10", nil)
	require.NoError(t, err)
	assert.Equal(t, "page-1", page.ID)
	assert.Len(t, fake.calls, 2)
}

func TestCreatePage_ValidationLengthIsContentTooLarge(t *testing.T) {
	fake := &fakeNotion{
		failWith: http.StatusBadRequest,
		failBody: `{"object":"error","status":400,"code":"validation_error","message":"body.children[0].paragraph.rich_text[0].text.content.length should be ≤ 2000"}`,
		failures: 1,
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient("secret", time.Second, WithBaseURL(srv.URL), WithExecutor(fastExecutor()))
	_, err := c.CreatePage(context.Background(), "parent-1", "Week 10", nil)
	assert.True(t, executor.IsKind(err, executor.KindContentTooLarge))
}

func TestAppendChildren_RejectsOversizedBatch(t *testing.T) {
	c := NewClient("secret", time.Second, WithBaseURL("http://127.0.0.1:0"))
	err := c.AppendChildren(context.Background(), "b", paragraphs(101))
	assert.True(t, executor.IsKind(err, executor.KindContentTooLarge))
}

func TestText_SplitsLongContent(t *testing.T) {
	long := strings.Repeat("é", MaxTextLength+10)
	rt := Text(long)
	require.Len(t, rt, 2)
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(rt[0].Text.Content))
	assert.Equal(t, 10, utf8.RuneCountInString(rt[1].Text.Content))

	assert.Len(t, Text("short"), 1)
	assert.Empty(t, Text(""))
}

func TestBlocks(t *testing.T) {
	b := LinkedBullet("Add parser", "https://github.com/c/1")
	assert.Equal(t, TypeBullet, b.Type)
	assert.Equal(t, "Add parser", b.Text())
	assert.Equal(t, "https://github.com/c/1", b.Bullet.RichText[0].Text.Link.URL)

	it := ItalicParagraph("Write what to keep")
	assert.True(t, it.Paragraph.RichText[0].Annotations.Italic)

	raw, err := json.Marshal(Divider())
	require.NoError(t, err)
	assert.JSONEq(t, `{"object":"block","type":"divider","divider":{}}`, string(raw))
	assert.Empty(t, Divider().Text())
}
