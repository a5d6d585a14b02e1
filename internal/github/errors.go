package github

import (
	"context"
	"errors"
	"net/http"

	gh "github.com/google/go-github/v57/github"

	"github.com/Afrawles/weekreflect/internal/executor"
)

// classify turns a go-github failure into the shared taxonomy. Primary and
// secondary rate limits keep their reset hints so the executor can wait
// for them.
func classify(err error, resp *gh.Response, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return &executor.ClassifiedError{
			Service:    serviceName,
			Kind:       executor.KindRateLimited,
			StatusCode: statusCode(rle.Response),
			Resource:   resource,
			Message:    rle.Message,
			ResetAt:    rle.Rate.Reset.Time,
			Err:        err,
		}
	}

	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		ce := &executor.ClassifiedError{
			Service:    serviceName,
			Kind:       executor.KindRateLimited,
			StatusCode: statusCode(abuse.Response),
			Resource:   resource,
			Message:    abuse.Message,
			Err:        err,
		}
		if abuse.RetryAfter != nil {
			ce.RetryAfter = *abuse.RetryAfter
		}
		return ce
	}

	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		ce := executor.ClassifyStatus(serviceName, er.Response.StatusCode, []byte(er.Message), er.Response.Header)
		ce.Resource = resource
		ce.Err = err
		return ce
	}

	if resp != nil && resp.Response != nil && resp.StatusCode >= 400 {
		ce := executor.ClassifyStatus(serviceName, resp.StatusCode, nil, resp.Header)
		ce.Resource = resource
		ce.Err = err
		return ce
	}

	ce := executor.ClassifyTransport(serviceName, err)
	ce.Resource = resource
	return ce
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
