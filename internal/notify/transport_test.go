package notify

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"gopkg.in/gomail.v2"

	"github.com/umsys/user-management/shared/events"
	"github.com/umsys/user-management/shared/models"
	"github.com/umsys/user-management/shared/observability"
)

type capturingMailer struct {
	messages []*gomail.Message
	err      error
}

func (m *capturingMailer) DialAndSend(msgs ...*gomail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func TestEmailTransportRecipients(t *testing.T) {
	tests := []struct {
		name     string
		env      Envelope
		expected string
	}{
		{name: "user notice goes to the user", env: Envelope{Email: "alice@example.com", Audience: AudienceUser, Subject: "Hi", Text: "Body"}, expected: "alice@example.com"},
		{name: "admin notice goes to the admin inbox", env: Envelope{Email: "alice@example.com", Audience: AudienceAdmin, Subject: "Review", Text: "Body", HTML: "<p>Body</p>"}, expected: "admin@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &capturingMailer{}
			transport := &EmailTransport{sender: mailer, from: "noreply@example.com", adminEmail: "admin@example.com", logger: observability.DiscardLogger()}

			if err := transport.Send(context.Background(), tt.env); err != nil {
				t.Fatalf("[%s] send: %v", tt.name, err)
			}
			if len(mailer.messages) != 1 {
				t.Fatalf("[%s] expected one message, got %d", tt.name, len(mailer.messages))
			}
			m := mailer.messages[0]
			if to := m.GetHeader("To"); len(to) != 1 || to[0] != tt.expected {
				t.Errorf("[%s] expected recipient %s, got %v", tt.name, tt.expected, to)
			}
			if subject := m.GetHeader("Subject"); len(subject) != 1 || subject[0] != tt.env.Subject {
				t.Errorf("[%s] unexpected subject %v", tt.name, subject)
			}
		})
	}
}

func TestEmailTransportDisabledOnlyLogs(t *testing.T) {
	transport := NewEmailTransport(SMTPSettings{Host: "smtp.example.com", Port: 587}, "admin@example.com", observability.DiscardLogger())
	if err := transport.Send(context.Background(), Envelope{Email: "alice@example.com", Subject: "Hi"}); err != nil {
		t.Errorf("expected disabled transport to succeed, got %v", err)
	}
}

func TestEmailTransportPropagatesSMTPErrors(t *testing.T) {
	mailer := &capturingMailer{err: errors.New("535 authentication failed")}
	transport := &EmailTransport{sender: mailer, from: "noreply@example.com", logger: observability.DiscardLogger()}
	if err := transport.Send(context.Background(), Envelope{Email: "alice@example.com"}); err == nil {
		t.Errorf("expected the SMTP error to be returned")
	}
}

type fakeDevices struct {
	devices []models.UserDevice
	deleted []string
}

func (f *fakeDevices) ListByUserID(_ context.Context, userID string) ([]models.UserDevice, error) {
	var out []models.UserDevice
	for _, d := range f.devices {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDevices) DeleteToken(_ context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	return nil
}

type fakeFCM struct {
	failTokens map[string]bool
	sent       []*messaging.Message
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	if f.failTokens[m.Token] {
		return "", errors.New("fcm unavailable")
	}
	f.sent = append(f.sent, m)
	return "projects/p/messages/1", nil
}

func TestPushTransport(t *testing.T) {
	devices := &fakeDevices{devices: []models.UserDevice{
		{UserID: "usr-alice", Token: "tok-1"},
		{UserID: "usr-alice", Token: "tok-2"},
	}}

	tests := []struct {
		name      string
		env       Envelope
		failing   map[string]bool
		wantSent  int
		wantError bool
	}{
		{name: "one message per device", env: Envelope{UserID: "usr-alice", Subject: "Hi", Priority: models.PriorityHigh}, wantSent: 2},
		{name: "admin notices are skipped", env: Envelope{UserID: "usr-alice", Audience: AudienceAdmin}, wantSent: 0},
		{name: "user without devices", env: Envelope{UserID: "usr-bob"}, wantSent: 0},
		{name: "partial failure still succeeds", env: Envelope{UserID: "usr-alice"}, failing: map[string]bool{"tok-1": true}, wantSent: 1},
		{name: "every device failing is an error", env: Envelope{UserID: "usr-alice"}, failing: map[string]bool{"tok-1": true, "tok-2": true}, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fcm := &fakeFCM{failTokens: tt.failing}
			transport := newPushTransport(fcm, devices, observability.DiscardLogger())

			err := transport.Send(context.Background(), tt.env)
			if (err != nil) != tt.wantError {
				t.Fatalf("[%s] expected error=%v, got %v", tt.name, tt.wantError, err)
			}
			if len(fcm.sent) != tt.wantSent {
				t.Errorf("[%s] expected %d sends, got %d", tt.name, tt.wantSent, len(fcm.sent))
			}
		})
	}
}

func TestPushTransportSetsAndroidPriority(t *testing.T) {
	fcm := &fakeFCM{}
	devices := &fakeDevices{devices: []models.UserDevice{{UserID: "usr-alice", Token: "tok-1"}}}
	transport := newPushTransport(fcm, devices, observability.DiscardLogger())

	if err := transport.Send(context.Background(), Envelope{UserID: "usr-alice", NotificationID: "n-1", Priority: models.PriorityHigh}); err != nil {
		t.Fatalf("send: %v", err)
	}
	m := fcm.sent[0]
	if m.Android == nil || m.Android.Priority != "high" || m.Data["notificationId"] != "n-1" {
		t.Errorf("unexpected message %+v", m)
	}
}

func TestInAppTransportPublishes(t *testing.T) {
	publisher := &recordingPublisher{}
	transport := NewInAppTransport(publisher)

	err := transport.Send(context.Background(), Envelope{NotificationID: "n-1", UserID: "usr-alice", Audience: AudienceAdmin, Subject: "Review", Text: "Body"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if publisher.stream != events.NotificationEventsStream || publisher.eventType != events.NotificationPublished {
		t.Errorf("published to %s/%s", publisher.stream, publisher.eventType)
	}
	payload, ok := publisher.payloads[0].(InAppEvent)
	if !ok || payload.Audience != AudienceAdmin || payload.Title != "Review" {
		t.Errorf("unexpected payload %+v", publisher.payloads[0])
	}
}
