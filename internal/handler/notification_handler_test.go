package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/errs"
	"github.com/umsys/user-management/shared/models"
)

type mockNotificationCommander struct {
	createFn    func(cqrs.CreateNotificationCommand) (*models.Notification, error)
	markReadFn  func(cqrs.MarkNotificationReadCommand) (*models.Notification, error)
	deleteFn    func(cqrs.DeleteNotificationCommand) error
	broadcastFn func(cqrs.BroadcastCommand) (*models.BroadcastResult, error)
	registerFn  func(cqrs.RegisterDeviceCommand) (*models.UserDevice, error)
}

func (m *mockNotificationCommander) CreateNotification(_ context.Context, cmd cqrs.CreateNotificationCommand) (*models.Notification, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockNotificationCommander) MarkNotificationRead(_ context.Context, cmd cqrs.MarkNotificationReadCommand) (*models.Notification, error) {
	if m.markReadFn != nil {
		return m.markReadFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockNotificationCommander) DeleteNotification(_ context.Context, cmd cqrs.DeleteNotificationCommand) error {
	if m.deleteFn != nil {
		return m.deleteFn(cmd)
	}
	return fmt.Errorf("not configured")
}
func (m *mockNotificationCommander) Broadcast(_ context.Context, cmd cqrs.BroadcastCommand) (*models.BroadcastResult, error) {
	if m.broadcastFn != nil {
		return m.broadcastFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockNotificationCommander) RegisterDevice(_ context.Context, cmd cqrs.RegisterDeviceCommand) (*models.UserDevice, error) {
	if m.registerFn != nil {
		return m.registerFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

type mockNotificationQuerier struct {
	listUserFn func(cqrs.ListUserNotificationsQuery) ([]models.Notification, error)
}

func (m *mockNotificationQuerier) GetNotification(_ context.Context, q cqrs.GetNotificationQuery) (*models.Notification, error) {
	if q.NotificationID != nTestNotification.ID {
		return nil, errs.NotFound("notification not found")
	}
	return nTestNotification, nil
}
func (m *mockNotificationQuerier) ListNotifications(context.Context, cqrs.ListNotificationsQuery) ([]models.Notification, error) {
	return []models.Notification{*nTestNotification}, nil
}
func (m *mockNotificationQuerier) ListUserNotifications(_ context.Context, q cqrs.ListUserNotificationsQuery) ([]models.Notification, error) {
	if m.listUserFn != nil {
		return m.listUserFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

var nTestNotification = &models.Notification{
	ID: "ntf-001", UserID: "usr-001", Title: "Hello", Message: "World", Priority: models.PriorityMedium,
}

func newNotificationTestRouter(cmds NotificationCommander, qrys NotificationQuerier, authUserID string, role models.Role) *gin.Engine {
	r := newTestEngine(authUserID, role)
	respond, _ := newTestResponder()
	h := NewNotificationHandler(cmds, qrys, respond)
	notifications := r.Group("/v1/notifications")
	notifications.POST("", h.CreateNotification)
	notifications.GET("", h.ListNotifications)
	notifications.POST("/broadcast", h.Broadcast)
	notifications.GET("/:id", h.GetNotification)
	notifications.PATCH("/:id/read", h.MarkNotificationRead)
	notifications.DELETE("/:id", h.DeleteNotification)
	r.GET("/v1/users/:userId/notifications", h.ListUserNotifications)
	r.POST("/v1/users/:userId/devices", h.RegisterDevice)
	return r
}

func TestCreateNotification(t *testing.T) {
	validBody := map[string]string{"userId": "usr-001", "title": "Hello", "message": "World", "priority": "MEDIUM"}
	tests := []struct {
		name           string
		body           interface{}
		createFn       func(cqrs.CreateNotificationCommand) (*models.Notification, error)
		expectedStatus int
	}{
		{
			name:           "success",
			body:           validBody,
			createFn:       func(cqrs.CreateNotificationCommand) (*models.Notification, error) { return nTestNotification, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - unknown priority",
			body:           map[string]string{"userId": "usr-001", "title": "Hello", "message": "World", "priority": "URGENT"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "success - title and message at their limits",
			body: map[string]string{
				"userId": "usr-001", "title": strings.Repeat("t", 100), "message": strings.Repeat("m", 1000), "priority": "LOW",
			},
			createFn:       func(cqrs.CreateNotificationCommand) (*models.Notification, error) { return nTestNotification, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - title too long",
			body:           map[string]string{"userId": "usr-001", "title": strings.Repeat("t", 101), "message": "World", "priority": "LOW"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - message too long",
			body:           map[string]string{"userId": "usr-001", "title": "Hello", "message": strings.Repeat("m", 1001), "priority": "LOW"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found - unknown user",
			body:           validBody,
			createFn:       func(cqrs.CreateNotificationCommand) (*models.Notification, error) { return nil, errs.NotFound("user not found") },
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newNotificationTestRouter(&mockNotificationCommander{createFn: tt.createFn}, &mockNotificationQuerier{}, "usr-adm", models.RoleAdmin)
			w := doRequest(router, http.MethodPost, "/v1/notifications", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestBroadcastReportsTally(t *testing.T) {
	router := newNotificationTestRouter(&mockNotificationCommander{
		broadcastFn: func(cqrs.BroadcastCommand) (*models.BroadcastResult, error) {
			return &models.BroadcastResult{Recipients: 3, Delivered: 2, Failed: 1}, nil
		},
	}, &mockNotificationQuerier{}, "usr-adm", models.RoleAdmin)

	w := doRequest(router, http.MethodPost, "/v1/notifications/broadcast", map[string]string{"title": "Hi", "message": "all", "priority": "LOW"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d; body: %s", w.Code, w.Body.String())
	}
	var res models.BroadcastResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res != (models.BroadcastResult{Recipients: 3, Delivered: 2, Failed: 1}) {
		t.Errorf("unexpected tally %+v", res)
	}
}

func TestBroadcastRejectsOversizedContent(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
	}{
		{name: "title too long", body: map[string]string{"title": strings.Repeat("t", 101), "message": "all", "priority": "LOW"}},
		{name: "message too long", body: map[string]string{"title": "Hi", "message": strings.Repeat("m", 1001), "priority": "LOW"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			router := newNotificationTestRouter(&mockNotificationCommander{
				broadcastFn: func(cqrs.BroadcastCommand) (*models.BroadcastResult, error) {
					called = true
					return &models.BroadcastResult{}, nil
				},
			}, &mockNotificationQuerier{}, "usr-adm", models.RoleAdmin)

			w := doRequest(router, http.MethodPost, "/v1/notifications/broadcast", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("[%s] expected status 400, got %d; body: %s", tt.name, w.Code, w.Body.String())
			}
			if called {
				t.Errorf("[%s] broadcast should not run for invalid content", tt.name)
			}
		})
	}
}

func TestListUserNotificationsPriorityFilter(t *testing.T) {
	var got cqrs.ListUserNotificationsQuery
	router := newNotificationTestRouter(&mockNotificationCommander{}, &mockNotificationQuerier{
		listUserFn: func(q cqrs.ListUserNotificationsQuery) ([]models.Notification, error) {
			got = q
			return []models.Notification{*nTestNotification}, nil
		},
	}, "usr-001", models.RoleUser)

	w := doRequest(router, http.MethodGet, "/v1/users/usr-001/notifications?priority=high", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", w.Code, w.Body.String())
	}
	if got.Priority != models.PriorityHigh || got.UserID != "usr-001" || got.Actor.UserID != "usr-001" {
		t.Errorf("unexpected query %+v", got)
	}
}

func TestNotificationRoutes(t *testing.T) {
	cmds := &mockNotificationCommander{
		markReadFn: func(cmd cqrs.MarkNotificationReadCommand) (*models.Notification, error) {
			if cmd.Actor.UserID != nTestNotification.UserID {
				return nil, errs.Forbidden("you can only mark your own notifications as read")
			}
			read := *nTestNotification
			read.Read = true
			return &read, nil
		},
		deleteFn: func(cqrs.DeleteNotificationCommand) error { return nil },
		registerFn: func(cmd cqrs.RegisterDeviceCommand) (*models.UserDevice, error) {
			return &models.UserDevice{UserID: cmd.UserID, Token: cmd.Token, Platform: cmd.Platform}, nil
		},
	}

	tests := []struct {
		name           string
		authUserID     string
		method         string
		url            string
		body           interface{}
		expectedStatus int
	}{
		{"get", "usr-001", http.MethodGet, "/v1/notifications/ntf-001", nil, http.StatusOK},
		{"get - not found", "usr-001", http.MethodGet, "/v1/notifications/ntf-404", nil, http.StatusNotFound},
		{"mark read - owner", "usr-001", http.MethodPatch, "/v1/notifications/ntf-001/read", nil, http.StatusOK},
		{"mark read - someone else", "usr-002", http.MethodPatch, "/v1/notifications/ntf-001/read", nil, http.StatusForbidden},
		{"delete", "usr-001", http.MethodDelete, "/v1/notifications/ntf-001", nil, http.StatusNoContent},
		{"register device", "usr-001", http.MethodPost, "/v1/users/usr-001/devices", map[string]string{"token": "tok-1", "platform": "android"}, http.StatusCreated},
		{"register device - other user", "usr-002", http.MethodPost, "/v1/users/usr-001/devices", map[string]string{"token": "tok-1"}, http.StatusForbidden},
		{"register device - bad platform", "usr-001", http.MethodPost, "/v1/users/usr-001/devices", map[string]string{"token": "tok-1", "platform": "fax"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newNotificationTestRouter(cmds, &mockNotificationQuerier{}, tt.authUserID, models.RoleUser)
			w := doRequest(router, tt.method, tt.url, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}
