package notifier

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailNotifier delivers through SendGrid.
type EmailNotifier struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewEmailNotifier(apiKey, sender string) *EmailNotifier {
	return &EmailNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("Motor Insurance", sender),
	}
}

func (n *EmailNotifier) Send(ctx context.Context, kind Kind, recipient string, payload Payload) error {
	if recipient == "" {
		return ErrNoRecipient
	}
	subject, htmlBody, err := render(kind, payload)
	if err != nil {
		return err
	}
	plain, err := plainText(kind, payload)
	if err != nil {
		return err
	}

	msg := mail.NewSingleEmail(n.from, subject, mail.NewEmail(payload[KeyName], recipient), plain, htmlBody)
	resp, err := n.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("sendgrid: status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: sendgrid status %d: %s", ErrRejected, resp.StatusCode, resp.Body)
	}
	return nil
}
