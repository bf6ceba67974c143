package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SMSNotifier posts messages to a bulk-SMS HTTP gateway.
type SMSNotifier struct {
	client   *resty.Client
	url      string
	apiKey   string
	senderID string
}

func NewSMSNotifier(url, apiKey, senderID string) *SMSNotifier {
	return &SMSNotifier{
		client:   resty.New().SetTimeout(10 * time.Second),
		url:      url,
		apiKey:   apiKey,
		senderID: senderID,
	}
}

func (n *SMSNotifier) Send(ctx context.Context, kind Kind, recipient string, payload Payload) error {
	if n.url == "" {
		return ErrNotConfigured
	}
	if recipient == "" {
		return ErrNoRecipient
	}
	text, err := plainText(kind, payload)
	if err != nil {
		return err
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("authorization", n.apiKey).
		SetFormData(map[string]string{
			"sender_id": n.senderID,
			"message":   text,
			"numbers":   recipient,
		}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code >= 500:
		return fmt.Errorf("sms gateway: status %d", code)
	case code >= 300:
		return fmt.Errorf("%w: sms gateway status %d: %s", ErrRejected, code, resp.String())
	}
	return nil
}
