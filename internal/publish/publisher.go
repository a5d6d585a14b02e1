// Package publish renders a reflection and sends it to the document store.
package publish

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Afrawles/weekreflect/internal/narrative"
	"github.com/Afrawles/weekreflect/internal/notion"
	"github.com/Afrawles/weekreflect/internal/report"
)

// Store creates a page in the document store.
type Store interface {
	CreatePage(ctx context.Context, parentPageID, title string, blocks []notion.Block) (*notion.Page, error)
}

// PublishError reports a failed publish. The caller decides how to fall back.
type PublishError struct {
	Message string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed: %s", e.Message)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Options controls one publish call.
type Options struct {
	DryRun      bool
	PreviousTry []string
}

// Result describes where the reflection went. On success exactly one of
// RemoteURL and LocalPath is set; both are empty for a dry run.
type Result struct {
	RemoteURL string `json:"remote_url,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
	Title     string `json:"title"`
}

// Publisher sends reflections to a Store under a parent page.
type Publisher struct {
	store        Store
	parentPageID string
	logger       *zap.Logger
}

func NewPublisher(store Store, parentPageID string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{store: store, parentPageID: parentPageID, logger: logger}
}

// Publish renders and creates the page. It does not fall back on failure.
func (p *Publisher) Publish(ctx context.Context, n *narrative.Result, data *report.IntegratedData, opts Options) (*Result, error) {
	title := BuildTitle(data.DateRange)
	if opts.DryRun {
		p.logger.Info("dry run, skipping publish", zap.String("title", title))
		return &Result{Title: title}, nil
	}

	if p.store == nil || p.parentPageID == "" {
		return nil, &PublishError{Message: "document store not configured"}
	}

	blocks := BuildBlocks(n, data, opts.PreviousTry)
	page, err := p.store.CreatePage(ctx, p.parentPageID, title, blocks)
	if err != nil {
		return nil, &PublishError{Message: err.Error(), Err: err}
	}

	p.logger.Info("reflection published", zap.String("title", title), zap.String("url", page.URL))
	return &Result{RemoteURL: page.URL, Title: title}, nil
}
