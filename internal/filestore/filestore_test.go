package filestore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MinioStore {
	t.Helper()
	s, err := NewMinioStore(Config{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "roamchat",
	})
	require.NoError(t, err)
	s.newId = func() (string, error) { return "abc123", nil }
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestObjectKey(t *testing.T) {
	s := newTestStore(t)

	tcases := []struct {
		name     string
		folder   string
		fileName string
		expected string
	}{
		{
			name:     "uses folder and extension",
			folder:   "uploads/profiles",
			fileName: "me.png",
			expected: "uploads/profiles/abc123_1700000000000.png",
		},
		{
			name:     "defaults folder and file name",
			expected: "uploads/chatrooms/abc123_1700000000000.jpg",
		},
		{
			name:     "trims slashes",
			folder:   "/uploads/chatrooms/",
			fileName: "cover.webp",
			expected: "uploads/chatrooms/abc123_1700000000000.webp",
		},
		{
			name:     "no extension",
			folder:   "uploads/messages",
			fileName: "README",
			expected: "uploads/messages/abc123_1700000000000",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := s.objectKey(tc.folder, tc.fileName)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, key)
		})
	}
}

func TestObjectKeyIdError(t *testing.T) {
	s := newTestStore(t)
	s.newId = func() (string, error) { return "", errors.New("exhausted") }

	_, err := s.objectKey("a", "b.jpg")
	assert.ErrorContains(t, err, "exhausted")
}

func TestPutPresignsLocally(t *testing.T) {
	s := newTestStore(t)

	up, err := s.Put(context.Background(), "uploads/chatrooms", "cover.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "uploads/chatrooms/abc123_1700000000000.jpg", up.Key)
	assert.True(t, strings.Contains(up.UploadURL, "/roamchat/uploads/chatrooms/abc123_1700000000000.jpg"))
	assert.True(t, strings.Contains(up.UploadURL, "X-Amz-Signature="))
	assert.True(t, strings.Contains(up.UploadURL, "X-Amz-SignedHeaders=content-type"), "the content type is part of the signature")
}

func TestPutRejectsUnknownFolder(t *testing.T) {
	s := newTestStore(t)

	for _, folder := range []string{"avatars", "uploads", "../secrets", "uploads/chatrooms/../../etc"} {
		_, err := s.Put(context.Background(), folder, "a.png", "image/png")
		assert.ErrorIs(t, err, ErrInvalidFolder, folder)
	}
}

func TestValidFolder(t *testing.T) {
	assert.True(t, ValidFolder(""))
	assert.True(t, ValidFolder("/uploads/profiles/"))
	assert.False(t, ValidFolder("uploads/other"))
}
