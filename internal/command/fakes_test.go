package command

import (
	"context"
	"sync"
	"time"

	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
	"github.com/umsys/user-management/shared/observability"
	"github.com/umsys/user-management/shared/utils"
)

var testLogger = observability.DiscardLogger()

// ---- users ----

type memUsers struct {
	mu        sync.Mutex
	users     map[string]models.User
	deleteErr error
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{users: make(map[string]models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return errs.Duplicate("email already exists")
		}
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.NotFound("user not found")
	}
	return &u, nil
}

func (m *memUsers) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return errs.NotFound("user not found")
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, hash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setHashLocked(userID, hash, at)
}

func (m *memUsers) setHashLocked(userID, hash string, at time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return errs.NotFound("user not found")
	}
	u.PasswordHash = hash
	u.UpdatedAt = at
	m.users[userID] = u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[id]; !ok {
		return errs.NotFound("user not found")
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *memUsers) hash(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].PasswordHash
}

func mustHash(password string) string {
	hash, err := utils.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}

type memViewCache struct {
	mu    sync.Mutex
	views map[string]models.UserView
}

func (c *memViewCache) CacheUserView(_ context.Context, view *models.UserView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.views == nil {
		c.views = make(map[string]models.UserView)
	}
	c.views[view.ID] = *view
}

func (c *memViewCache) InvalidateUserView(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, userID)
}

// ---- addresses ----

// memAddresses applies each write under one lock, the way the PostgreSQL
// store applies it in one transaction.
type memAddresses struct {
	mu        sync.Mutex
	addresses map[string]models.Address
}

func newMemAddresses() *memAddresses {
	return &memAddresses{addresses: make(map[string]models.Address)}
}

func (m *memAddresses) Create(_ context.Context, addr *models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr.IsPrimary {
		m.clearPrimaryLocked(addr.UserID, addr.ID)
	}
	m.addresses[addr.ID] = *addr
	return nil
}

func (m *memAddresses) GetByID(_ context.Context, id string) (*models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok {
		return nil, errs.NotFound("address not found")
	}
	return &a, nil
}

func (m *memAddresses) Update(_ context.Context, addr *models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.addresses[addr.ID]; !ok {
		return errs.NotFound("address not found")
	}
	if addr.IsPrimary {
		m.clearPrimaryLocked(addr.UserID, addr.ID)
	}
	m.addresses[addr.ID] = *addr
	return nil
}

func (m *memAddresses) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.addresses[id]; !ok {
		return errs.NotFound("address not found")
	}
	delete(m.addresses, id)
	return nil
}

func (m *memAddresses) SetPrimary(_ context.Context, id string, at time.Time) (*models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok {
		return nil, errs.NotFound("address not found")
	}
	m.clearPrimaryLocked(a.UserID, id)
	a.IsPrimary = true
	a.UpdatedAt = at
	m.addresses[id] = a
	return &a, nil
}

func (m *memAddresses) clearPrimaryLocked(userID, keepID string) {
	for id, a := range m.addresses {
		if a.UserID == userID && id != keepID && a.IsPrimary {
			a.IsPrimary = false
			m.addresses[id] = a
		}
	}
}

func (m *memAddresses) primaryCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.addresses {
		if a.UserID == userID && a.IsPrimary {
			n++
		}
	}
	return n
}

// ---- password change requests ----

// memPasswordChanges resolves requests and applies approved hashes under the
// users lock, mirroring the single PostgreSQL transaction.
type memPasswordChanges struct {
	mu       sync.Mutex
	users    *memUsers
	requests map[string]models.PasswordChangeRequest
}

func newMemPasswordChanges(users *memUsers) *memPasswordChanges {
	return &memPasswordChanges{users: users, requests: make(map[string]models.PasswordChangeRequest)}
}

func (m *memPasswordChanges) Create(_ context.Context, req *models.PasswordChangeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.UserID == req.UserID && existing.Status == models.PasswordChangePending {
			return errs.Duplicate("a password change request is already pending")
		}
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *memPasswordChanges) FindPendingByUserID(_ context.Context, userID string) (*models.PasswordChangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.UserID == userID && r.Status == models.PasswordChangePending {
			return &r, nil
		}
	}
	return nil, errs.NotFound("no pending password change request")
}

func (m *memPasswordChanges) Resolve(_ context.Context, id, adminID string, status models.PasswordChangeStatus, at time.Time) (*models.PasswordChangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != models.PasswordChangePending {
		return nil, errs.NotFound("no pending password change request")
	}
	if status == models.PasswordChangeApproved {
		m.users.mu.Lock()
		err := m.users.setHashLocked(r.UserID, r.NewPasswordHash, at)
		m.users.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	r.Status = status
	r.AdminID = adminID
	r.UpdatedAt = at
	m.requests[id] = r
	return &r, nil
}

func (m *memPasswordChanges) get(id string) models.PasswordChangeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]
}

func (m *memPasswordChanges) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// ---- notifier and publisher ----

type sentNotice struct {
	kind   string
	userID string
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentNotice
	err     error
	created *models.Notification
	result  *models.BroadcastResult
}

func (n *recordingNotifier) record(kind string, user models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{kind: kind, userID: user.ID})
	return n.err
}

func (n *recordingNotifier) notices() []sentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotice(nil), n.sent...)
}

func (n *recordingNotifier) Notify(_ context.Context, user models.User, title, text string, priority models.Priority) (*models.Notification, error) {
	err := n.record("notify", user)
	if n.created != nil {
		return n.created, err
	}
	return &models.Notification{ID: "ntf-1", UserID: user.ID, Title: title, Message: text, Priority: priority}, err
}

func (n *recordingNotifier) SendUserCreationNotice(_ context.Context, user models.User) error {
	return n.record("user_created", user)
}

func (n *recordingNotifier) SendPasswordResetRequested(_ context.Context, user models.User) error {
	return n.record("reset_requested", user)
}

func (n *recordingNotifier) SendPasswordResetApproved(_ context.Context, user models.User) error {
	return n.record("reset_approved", user)
}

func (n *recordingNotifier) SendPasswordResetRejected(_ context.Context, user models.User) error {
	return n.record("reset_rejected", user)
}

func (n *recordingNotifier) SendPasswordChanged(_ context.Context, user models.User) error {
	return n.record("password_changed", user)
}

func (n *recordingNotifier) SendAccountDeleted(_ context.Context, user models.User) error {
	return n.record("account_deleted", user)
}

func (n *recordingNotifier) Broadcast(context.Context, string, string, models.Priority) (*models.BroadcastResult, error) {
	return n.result, n.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}
