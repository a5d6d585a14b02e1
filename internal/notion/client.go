// Package notion publishes pages through the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Afrawles/weekreflect/internal/executor"
)

const (
	baseURL       = "https://api.notion.com/v1"
	apiVersion    = "2022-06-28"
	serviceName   = "notion"
	MaxBlockBatch = 100
)

// Client creates pages under a parent page.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	exec       *executor.Executor
	logger     *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithExecutor(e *executor.Executor) Option {
	return func(c *Client) { c.exec = e }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		// Notion allows an average of three requests per second.
		exec:   executor.New(serviceName, executor.WithRateLimit(3, 3)),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Page is a created page.
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type parent struct {
	PageID string `json:"page_id"`
}

type titleProperty struct {
	Title []RichText `json:"title"`
}

type createPageRequest struct {
	Parent     parent                   `json:"parent"`
	Properties map[string]titleProperty `json:"properties"`
	Children   []Block                  `json:"children,omitempty"`
}

type appendChildrenRequest struct {
	Children []Block `json:"children"`
}

type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePage creates a page titled title under parentPageID. The API accepts
// at most MaxBlockBatch children per request, so the page is created with the
// first batch and the rest are appended in order.
func (c *Client) CreatePage(ctx context.Context, parentPageID, title string, blocks []Block) (*Page, error) {
	first, rest := splitBatch(blocks)

	req := createPageRequest{
		Parent:     parent{PageID: parentPageID},
		Properties: map[string]titleProperty{"title": {Title: Text(title)}},
		Children:   first,
	}

	var page Page
	_, err := executor.Execute(ctx, c.exec, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodPost, "/pages", "page "+title, req, &page)
	})
	if err != nil {
		return nil, err
	}

	for len(rest) > 0 {
		var batch []Block
		batch, rest = splitBatch(rest)
		if err := c.AppendChildren(ctx, page.ID, batch); err != nil {
			return &page, fmt.Errorf("page %s created but appending blocks failed: %w", page.ID, err)
		}
	}

	c.logger.Info("page created", zap.String("page_id", page.ID), zap.Int("blocks", len(blocks)))
	return &page, nil
}

// AppendChildren appends up to MaxBlockBatch blocks to blockID.
func (c *Client) AppendChildren(ctx context.Context, blockID string, blocks []Block) error {
	if len(blocks) > MaxBlockBatch {
		return &executor.ClassifiedError{
			Service:  serviceName,
			Kind:     executor.KindContentTooLarge,
			Resource: "block " + blockID,
			Message:  fmt.Sprintf("%d blocks exceed the batch limit of %d", len(blocks), MaxBlockBatch),
		}
	}
	_, err := executor.Execute(ctx, c.exec, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodPatch, "/blocks/"+blockID+"/children", "block "+blockID,
			appendChildrenRequest{Children: blocks}, nil)
	})
	return err
}

func splitBatch(blocks []Block) (batch, rest []Block) {
	if len(blocks) <= MaxBlockBatch {
		return blocks, nil
	}
	return blocks[:MaxBlockBatch], blocks[MaxBlockBatch:]
}

func (c *Client) do(ctx context.Context, method, path, resource string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return executor.ClassifyTransport(serviceName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return executor.ClassifyTransport(serviceName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return classify(resp, respBody, resource)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classify maps a Notion error response. The error code in the body is more
// specific than the status for a few cases.
func classify(resp *http.Response, body []byte, resource string) error {
	ce := executor.ClassifyStatus(serviceName, resp.StatusCode, body, resp.Header)
	ce.Resource = resource

	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Code != "" {
		ce.Message = ae.Code + ": " + ae.Message
		switch ae.Code {
		case "object_not_found":
			ce.Kind = executor.KindNotFound
		case "rate_limited":
			ce.Kind = executor.KindRateLimited
		case "conflict_error":
			ce.Kind = executor.KindServiceUnavailable
		}
	}
	return ce
}
