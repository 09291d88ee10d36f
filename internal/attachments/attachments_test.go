package attachments

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"lockify/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresigner(t *testing.T) *Presigner {
	t.Helper()

	p, err := New(context.Background(), config.S3{
		Region:     "us-east-1",
		Endpoint:   "http://localhost:9000",
		AccessKey:  "minio",
		SecretKey:  "minio-secret",
		Bucket:     "lockify",
		PresignTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	p.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC) }

	return p
}

func TestPresigner_PresignUpload(t *testing.T) {
	p := newTestPresigner(t)

	res, err := p.PresignUpload(context.Background(), "alice@gmail.com")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Key, "users/alice@gmail.com/2026/10/17/"), res.Key)
	assert.Equal(t, time.Date(2026, 10, 17, 9, 45, 0, 0, time.UTC), res.ExpiresAt)

	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/lockify/users/"), u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestPresigner_PresignDownload(t *testing.T) {
	p := newTestPresigner(t)
	ctx := context.Background()

	t.Run("own key", func(t *testing.T) {
		res, err := p.PresignDownload(ctx, "alice@gmail.com", "users/alice@gmail.com/2026/10/17/abc")
		require.NoError(t, err)
		assert.Contains(t, res.URL, "X-Amz-Signature")
	})

	t.Run("foreign key", func(t *testing.T) {
		_, err := p.PresignDownload(ctx, "bob@gmail.com", "users/alice@gmail.com/2026/10/17/abc")
		assert.ErrorIs(t, err, ErrForeignKey)
	})

	t.Run("path traversal", func(t *testing.T) {
		_, err := p.PresignDownload(ctx, "bob@gmail.com", "users/bob@gmail.com/../alice@gmail.com/abc")
		assert.ErrorIs(t, err, ErrForeignKey)
	})
}
