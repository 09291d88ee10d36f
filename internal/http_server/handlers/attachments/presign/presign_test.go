package presign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lockify/internal/attachments"
	resp "lockify/internal/lib/api/response"
	"lockify/internal/lib/logger/handlers/slogdiscard"
	"lockify/internal/lib/validator"
	"lockify/internal/middleware/authtoken"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPresigner struct {
	mock.Mock
}

func (m *MockPresigner) PresignUpload(ctx context.Context, owner string) (attachments.Presigned, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(attachments.Presigned), args.Error(1)
}

func (m *MockPresigner) PresignDownload(ctx context.Context, owner, key string) (attachments.Presigned, error) {
	args := m.Called(ctx, owner, key)
	return args.Get(0).(attachments.Presigned), args.Error(1)
}

func TestUpload(t *testing.T) {
	p := &MockPresigner{}
	want := attachments.Presigned{
		Key:       "users/alice@gmail.com/2026/10/17/k",
		URL:       "https://s3/put",
		ExpiresAt: time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
	}
	p.On("PresignUpload", mock.Anything, "alice@gmail.com").Return(want, nil)

	req := httptest.NewRequest(http.MethodPost, "/attachments/upload", nil)
	req = req.WithContext(authtoken.WithEmail(req.Context(), "alice@gmail.com"))
	rr := httptest.NewRecorder()

	Upload(slogdiscard.NewDiscardLogger(), p).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, resp.StatusOK, body.Status)
	assert.Equal(t, want.Key, body.Attachment.Key)
	assert.Equal(t, want.URL, body.Attachment.URL)
	p.AssertExpectations(t)
}

func TestDownload(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{name: "own key", body: `{"key":"users/alice@gmail.com/k"}`, wantCode: http.StatusOK},
		{name: "foreign key", body: `{"key":"users/bob@gmail.com/k"}`, err: fmt.Errorf("wrap: %w", attachments.ErrForeignKey), wantCode: http.StatusNotFound},
		{name: "missing key", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "broken json", body: `{`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MockPresigner{}
			p.On("PresignDownload", mock.Anything, "alice@gmail.com", mock.Anything).
				Return(attachments.Presigned{URL: "https://s3/get"}, tt.err).Maybe()

			req := httptest.NewRequest(http.MethodPost, "/attachments/download", bytes.NewBufferString(tt.body))
			req = req.WithContext(authtoken.WithEmail(req.Context(), "alice@gmail.com"))
			rr := httptest.NewRecorder()

			Download(slogdiscard.NewDiscardLogger(), validator.New(), p).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestUpload_NoIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/attachments/upload", nil)
	rr := httptest.NewRecorder()

	Upload(slogdiscard.NewDiscardLogger(), &MockPresigner{}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
