package notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls      []string
	failFirst  int
	failWith   error
	recipients []string
}

func (r *recorder) Send(_ context.Context, kind Kind, recipient string, _ Payload) error {
	r.calls = append(r.calls, string(kind))
	r.recipients = append(r.recipients, recipient)
	if r.failFirst > 0 {
		r.failFirst--
		return r.failWith
	}
	return nil
}

func TestRouterPicksChannelByRecipient(t *testing.T) {
	email, sms := &recorder{}, &recorder{}
	r := &Router{Email: email, SMS: sms}
	ctx := context.Background()

	require.NoError(t, r.Send(ctx, KindOTPVerification, "asha@example.com", Payload{KeyCode: "123456"}))
	require.NoError(t, r.Send(ctx, KindOTPVerification, "9876543210", Payload{KeyCode: "123456"}))

	assert.Equal(t, []string{"asha@example.com"}, email.recipients)
	assert.Equal(t, []string{"9876543210"}, sms.recipients)
	assert.ErrorIs(t, r.Send(ctx, KindOTPVerification, " ", nil), ErrNoRecipient)

	assert.ErrorIs(t, (&Router{Email: email}).Send(ctx, KindPolicyIssued, "9876543210", nil), ErrNotConfigured)
}

func TestRetryingRetriesTransientFailures(t *testing.T) {
	next := &recorder{failFirst: 2, failWith: errors.New("connection reset")}
	n := NewRetrying(next, 3, time.Millisecond)

	require.NoError(t, n.Send(context.Background(), KindPolicyIssued, "a@b.co", nil))
	assert.Len(t, next.calls, 3)
}

func TestRetryingStopsOnRejection(t *testing.T) {
	next := &recorder{failFirst: 5, failWith: ErrRejected}
	n := NewRetrying(next, 3, time.Millisecond)

	err := n.Send(context.Background(), KindPolicyIssued, "a@b.co", nil)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Len(t, next.calls, 1)
}

func TestRenderTemplates(t *testing.T) {
	subject, body, err := render(KindOTPVerification, Payload{KeyCode: "482913", KeyName: "Asha <Rao>"})
	require.NoError(t, err)
	assert.Equal(t, "Your verification code", subject)
	assert.Contains(t, body, "482913")
	assert.Contains(t, body, "Asha &lt;Rao&gt;")

	subject, body, err = render(KindPolicyIssued, Payload{KeyPolicyNumber: "POL-1", KeyInsurer: "Acme"})
	require.NoError(t, err)
	assert.Contains(t, subject, "POL-1")
	assert.Contains(t, body, "Acme")

	_, _, err = render(KindOTPVerification, Payload{})
	assert.ErrorIs(t, err, ErrInvalidPayload)
	_, _, err = render("welcome", Payload{})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEmailNotifierPostsToSendGrid(t *testing.T) {
	var hits int32
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewEmailNotifier("SG.test", "no-reply@presale.local")
	n.client.BaseURL = srv.URL + "/v3/mail/send"

	err := n.Send(context.Background(), KindOTPVerification, "asha@example.com", Payload{KeyCode: "111222"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits)
	assert.Equal(t, "Bearer SG.test", auth)
}

func TestEmailNotifierMapsClientErrorsToRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad"}]}`))
	}))
	defer srv.Close()

	n := NewEmailNotifier("SG.test", "no-reply@presale.local")
	n.client.BaseURL = srv.URL + "/v3/mail/send"

	err := n.Send(context.Background(), KindPolicyIssued, "asha@example.com", Payload{KeyPolicyNumber: "POL-1"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSMSNotifierSendsForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		assert.Equal(t, "key-1", r.Header.Get("authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSMSNotifier(srv.URL, "key-1", "PRESAL")
	require.NoError(t, n.Send(context.Background(), KindOTPVerification, "9876543210", Payload{KeyCode: "654321"}))

	assert.Equal(t, "9876543210", form.Get("numbers"))
	assert.Equal(t, "PRESAL", form.Get("sender_id"))
	assert.Contains(t, form.Get("message"), "654321")

	assert.ErrorIs(t, NewSMSNotifier("", "", "").Send(context.Background(), KindOTPVerification, "9876543210", nil), ErrNotConfigured)
}

func TestLogNotifierValidatesPayload(t *testing.T) {
	var n LogNotifier
	assert.NoError(t, n.Send(context.Background(), KindOTPVerification, "a@b.co", Payload{KeyCode: "123456"}))
	assert.Error(t, n.Send(context.Background(), KindOTPVerification, "a@b.co", Payload{}))
}
