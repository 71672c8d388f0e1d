package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/umsys/user-management/shared/models"
	"github.com/umsys/user-management/shared/observability"
)

func fakeAuthUser(userID string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", userID)
		c.Set("role", string(role))
		c.Next()
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	captured []error
}

func (r *recordingReporter) CaptureException(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = append(r.captured, err)
}

func newTestResponder() (*Responder, *recordingReporter) {
	reporter := &recordingReporter{}
	return NewResponder(observability.DiscardLogger(), reporter), reporter
}

func newTestEngine(userID string, role models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuthUser(userID, role))
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
