package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/storytime-billing/internal/http/middlewarectx"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SyncUser(ctx context.Context, userID, email string) (bool, error) {
	args := m.Called(ctx, userID, email)
	return args.Bool(0), args.Error(1)
}

func TestSyncHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:           "new user with token email",
			setupMock:      func(m *MockService) { m.On("SyncUser", mock.Anything, "u1", "token@example.com").Return(true, nil) },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "existing user with body email",
			body:           `{"email":"body@example.com"}`,
			setupMock:      func(m *MockService) { m.On("SyncUser", mock.Anything, "u1", "body@example.com").Return(false, nil) },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid email",
			body:           `{"email":"nope"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "storage failure",
			setupMock:      func(m *MockService) { m.On("SyncUser", mock.Anything, "u1", "token@example.com").Return(false, errors.New("db down")) },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/sync", strings.NewReader(tt.body))
			ctx := context.WithValue(req.Context(), middlewarectx.UserID, "u1")
			ctx = context.WithValue(ctx, middlewarectx.Email, "token@example.com")
			rec := httptest.NewRecorder()
			New(log, svc).ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
