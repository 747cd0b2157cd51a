package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/Veraticus/the-paperwork-must-flow/internal/common"
	"github.com/Veraticus/the-paperwork-must-flow/internal/model"
)

// MailgunConfig configures e-mail delivery.
type MailgunConfig struct {
	Recipients map[string]string `mapstructure:"recipients"`
	Domain     string            `mapstructure:"domain"`
	APIKey     string            `mapstructure:"api_key"`
	Sender     string            `mapstructure:"sender"`
	EU         bool              `mapstructure:"eu"`
}

// messageSender is the part of the Mailgun client used for delivery.
type messageSender interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// MailgunNotifier e-mails reminders through Mailgun.
type MailgunNotifier struct {
	mg         messageSender
	recipients map[string]string
	sender     string
	retry      common.RetryOptions
	timeout    time.Duration
}

// NewMailgunNotifier creates a Mailgun notifier. Recipients maps owner ids to
// addresses; owners whose id is itself an address need no entry.
func NewMailgunNotifier(cfg MailgunConfig) (*MailgunNotifier, error) {
	if cfg.Domain == "" || cfg.APIKey == "" || cfg.Sender == "" {
		return nil, fmt.Errorf("%w: mailgun domain, api key and sender are required", common.ErrMissingConfig)
	}
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if cfg.EU {
		mg.SetAPIBase(mailgun.APIBaseEU)
	}
	slog.Info("Mailgun client initialized", "domain", cfg.Domain)
	return newMailgunNotifier(mg, cfg), nil
}

func newMailgunNotifier(mg messageSender, cfg MailgunConfig) *MailgunNotifier {
	return &MailgunNotifier{
		mg:         mg,
		recipients: cfg.Recipients,
		sender:     cfg.Sender,
		timeout:    20 * time.Second,
		retry:      common.DefaultRetryOptions(),
	}
}

// Notify sends one reminder e-mail, retrying transient failures.
func (n *MailgunNotifier) Notify(ctx context.Context, r model.Reminder) error {
	to, ok := n.recipient(r.OwnerID)
	if !ok {
		slog.Warn("No e-mail address for reminder owner", "owner_id", r.OwnerID, "record_id", r.RecordID)
		return nil
	}

	message := n.mg.NewMessage(n.sender, Subject(r), Body(r), to)
	message.AddTag("renewal-reminder")
	message.AddTag(string(r.Urgency))

	err := common.WithRetry(ctx, func() error {
		sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		resp, id, err := n.mg.Send(sendCtx, message)
		if err != nil {
			return classifySendError(err)
		}
		slog.Debug("Reminder e-mail sent", "record_id", r.RecordID, "id", id, "response", resp)
		return nil
	}, n.retry)
	if err != nil {
		return fmt.Errorf("mailgun send failed for record %s: %w", r.RecordID, err)
	}
	return nil
}

func (n *MailgunNotifier) recipient(ownerID string) (string, bool) {
	if addr, ok := n.recipients[ownerID]; ok && addr != "" {
		return addr, true
	}
	if strings.Contains(ownerID, "@") {
		return ownerID, true
	}
	return "", false
}

// classifySendError marks client errors as permanent so they are not retried.
func classifySendError(err error) error {
	var unexpected *mailgun.UnexpectedResponseError
	if errors.As(err, &unexpected) {
		switch {
		case unexpected.Actual == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", common.ErrRateLimit, err)
		case unexpected.Actual < http.StatusInternalServerError:
			return common.Permanent(err)
		}
	}
	return err
}

// Subject is the e-mail subject line for a reminder.
func Subject(r model.Reminder) string {
	switch {
	case r.DaysUntil < 0:
		return fmt.Sprintf("Overdue: %s expired %d days ago", r.Title, -r.DaysUntil)
	case r.DaysUntil == 0:
		return fmt.Sprintf("Due today: %s", r.Title)
	default:
		return fmt.Sprintf("Renewal reminder: %s in %d days", r.Title, r.DaysUntil)
	}
}

// Body is the plain-text e-mail body for a reminder.
func Body(r model.Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", r.Title)
	if r.Provider != "" {
		fmt.Fprintf(&b, " (%s)", r.Provider)
	}
	fmt.Fprintf(&b, " ends on %s.\n\n", r.EndDate.Format("2 January 2006"))
	fmt.Fprintf(&b, "Urgency: %s\n", r.Urgency)
	if r.Severity != "" {
		fmt.Fprintf(&b, "Overdue severity: %s\n", r.Severity)
	}
	fmt.Fprintf(&b, "Domain: %s\n", r.Domain)
	return b.String()
}
