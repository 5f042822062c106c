// Package notify delivers optional email/SMS notifications when an
// application reaches a terminal state. Delivery is best effort: failures are
// logged and never surface on the completion path.
package notify

import (
	"context"
	"fmt"

	"applyflow/internal/common/aws"
	"applyflow/internal/common/config"
	"applyflow/internal/common/logger"
	"applyflow/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// ContactSource resolves a user's notification targets.
type ContactSource interface {
	GetContact(ctx context.Context, userID string) (email, phone string, err error)
}

// Notifier sends terminal-status notifications over SES and SNS.
type Notifier struct {
	ses      *aws.SESClient
	sns      *aws.SNSClient
	contacts ContactSource
	cfg      config.NotificationConfig
	log      logger.Logger
}

// New builds a Notifier. Returns nil when both channels are disabled so
// callers can pass the result straight through as an optional dependency.
func New(ctx context.Context, cfg config.NotificationConfig, contacts ContactSource, log logger.Logger) (*Notifier, error) {
	if !cfg.Email.Enabled && !cfg.SMS.Enabled {
		return nil, nil
	}

	n := &Notifier{contacts: contacts, cfg: cfg, log: log}

	if cfg.Email.Enabled {
		client, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("notify: ses client: %w", err)
		}
		n.ses = client
	}
	if cfg.SMS.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("notify: sns client: %w", err)
		}
		n.sns = client
	}
	return n, nil
}

// NotifyCompletion sends the terminal-status notification for an
// application.
func (n *Notifier) NotifyCompletion(ctx context.Context, app *models.Application) {
	email, phone, err := n.contacts.GetContact(ctx, app.UserID)
	if err != nil {
		n.log.Warn("could not resolve notification contact", map[string]interface{}{
			"userId": app.UserID,
			"error":  err.Error(),
		})
		return
	}

	subject, body := renderCompletion(app)

	if n.ses != nil && email != "" {
		if err := n.sendEmail(ctx, email, subject, body); err != nil {
			n.log.Warn("email notification failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}

	if n.sns != nil && phone != "" {
		if err := n.sendSMS(ctx, phone, subject); err != nil {
			n.log.Warn("sms notification failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source:      strPtr(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{ToAddresses: []string{to}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: strPtr(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: strPtr(body)},
			},
		},
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, phone, message string) error {
	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: strPtr(phone),
		Message:     strPtr(message),
	})
	return err
}

func renderCompletion(app *models.Application) (subject, body string) {
	switch app.Status {
	case models.StatusSuccess:
		subject = "Your job application was submitted"
		body = fmt.Sprintf("Application %s was submitted successfully.", app.ID)
		if app.AppliedAt != nil {
			body += fmt.Sprintf(" Applied at %s.", app.AppliedAt.Format("2006-01-02 15:04 MST"))
		}
	case models.StatusFailed:
		subject = "Your job application could not be submitted"
		body = fmt.Sprintf("Application %s failed: %s", app.ID, app.ErrorMessage)
	default:
		subject = "Job application update"
		body = fmt.Sprintf("Application %s is %s.", app.ID, app.Status)
	}
	return subject, body
}

func strPtr(s string) *string { return &s }
