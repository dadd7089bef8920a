package recoverfiles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/filesfy/internal/config"
	"github.com/magabrotheeeer/filesfy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
	"github.com/magabrotheeeer/filesfy/internal/models"
	"github.com/magabrotheeeer/filesfy/internal/services/recovery"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func filesBody(n int, sizeMB float64) string {
	files := make([]models.Item, n)
	for i := range files {
		files[i] = models.Item{ID: int64(i + 1), Name: fmt.Sprintf("f%d.jpg", i), SizeMB: sizeMB, Type: "image"}
	}
	b, _ := json.Marshal(Request{Files: files, Destination: "/home/user/recovered"})
	return string(b)
}

func TestHandler_ServeHTTP(t *testing.T) {
	svc := recovery.New(recovery.NewCatalogSource(), config.Limits{}, nil, newNoopLogger())
	handler := New(newNoopLogger(), svc)

	tests := []struct {
		name     string
		plan     string
		body     string
		wantCode int
		wantKind string
		wantErr  string
	}{
		{
			name:     "free within quota",
			body:     filesBody(5, 10),
			wantCode: http.StatusOK,
		},
		{
			name:     "free too many files",
			body:     filesBody(6, 1),
			wantCode: http.StatusBadRequest,
			wantKind: apperr.KindQuotaExceeded,
			wantErr:  "at most 5 files",
		},
		{
			name:     "pro allows more files",
			plan:     "PRO",
			body:     filesBody(6, 1),
			wantCode: http.StatusOK,
		},
		{
			name:     "no files",
			body:     `{"files":[],"destination":"/tmp"}`,
			wantCode: http.StatusBadRequest,
			wantKind: apperr.KindValidation,
		},
		{
			name:     "no destination",
			body:     `{"files":[{"id":1,"sizeInMB":1}]}`,
			wantCode: http.StatusBadRequest,
			wantKind: apperr.KindValidation,
		},
		{
			name:     "negative size rejected",
			body:     `{"files":[{"id":1,"sizeInMB":512},{"id":2,"sizeInMB":450},{"id":3,"sizeInMB":-900}],"destination":"/tmp"}`,
			wantCode: http.StatusBadRequest,
			wantKind: apperr.KindValidation,
			wantErr:  "field SizeMB must be at least 0",
		},
		{
			name:     "bad json",
			body:     `{"files":`,
			wantCode: http.StatusBadRequest,
			wantKind: apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/recovery/recover", bytes.NewBufferString(tt.body))
			if tt.plan != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.Plan, tt.plan))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var got struct {
				Kind  string                 `json:"kind"`
				Error string                 `json:"error"`
				Data  models.RecoveryReceipt `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantKind, got.Kind)
			if tt.wantErr != "" {
				assert.True(t, strings.Contains(got.Error, tt.wantErr), got.Error)
			}
			if tt.wantCode == http.StatusOK {
				assert.True(t, strings.HasPrefix(got.Data.RecoveryID, "recovery-"))
			}
		})
	}
}
