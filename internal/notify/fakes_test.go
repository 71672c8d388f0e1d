package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/umsys/user-management/shared/models"
)

type memoryStore struct {
	mu      sync.Mutex
	records []models.Notification
	saveErr error
}

func (s *memoryStore) Save(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records = append(s.records, *n)
	return nil
}

func (s *memoryStore) byUser() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, n := range s.records {
		counts[n.UserID]++
	}
	return counts
}

type staticUsers struct {
	users []models.User
	err   error
}

func (u staticUsers) ListAll(context.Context) ([]models.User, error) {
	return u.users, u.err
}

// scriptedTransport fails the first failures sends, or every send to the
// users in failFor.
type scriptedTransport struct {
	mu       sync.Mutex
	channel  models.Channel
	failures int
	failFor  map[string]bool
	sent     []Envelope
	calls    int
}

var errSendFailed = errors.New("send failed")

func (t *scriptedTransport) Channel() models.Channel {
	if t.channel == "" {
		return models.ChannelEmail
	}
	return t.channel
}

func (t *scriptedTransport) Send(_ context.Context, env Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.failFor[env.UserID] {
		return errSendFailed
	}
	if t.failures > 0 {
		t.failures--
		return errSendFailed
	}
	t.sent = append(t.sent, env)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	stream    string
	eventType string
	payloads  []any
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.stream = stream
	p.eventType = eventType
	p.payloads = append(p.payloads, data)
	return nil
}

type countingReporter struct {
	mu       sync.Mutex
	captured int
}

func (r *countingReporter) CaptureException(error) {
	r.mu.Lock()
	r.captured++
	r.mu.Unlock()
}
