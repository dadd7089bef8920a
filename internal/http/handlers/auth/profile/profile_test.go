package profile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) UpdateProfile(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.UserView, error) {
	args := m.Called(ctx, userUID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserView), args.Error(1)
}

func TestHandler_ServeHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := "New Name"

	tests := []struct {
		name     string
		uid      string
		body     string
		mockCall bool
		mockErr  error
		wantCode int
		wantBody string
	}{
		{
			name:     "rename",
			uid:      "u-1",
			body:     `{"name":"New Name"}`,
			mockCall: true,
			wantCode: http.StatusOK,
			wantBody: `"name":"New Name"`,
		},
		{
			name:     "email is not editable",
			uid:      "u-1",
			body:     `{"email":"x@y.z"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad avatar url",
			uid:      "u-1",
			body:     `{"avatar_url":"not a url"}`,
			wantCode: http.StatusBadRequest,
			wantBody: `"kind":"ValidationError"`,
		},
		{
			name:     "no user in context",
			body:     `{"name":"New Name"}`,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "user deleted",
			uid:      "u-1",
			body:     `{"name":"New Name"}`,
			mockCall: true,
			mockErr:  fmt.Errorf("auth.UpdateProfile: %w", apperr.ErrNotFound),
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.mockCall {
				var view *models.UserView
				if tt.mockErr == nil {
					view = &models.UserView{ID: "u-1", Email: "a@b.c", Name: name}
				}
				svc.On("UpdateProfile", mock.Anything, "u-1", models.ProfileUpdate{Name: &name}).
					Return(view, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPatch, "/auth/profile", bytes.NewBufferString(tt.body))
			if tt.uid != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.uid))
			}
			rec := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
