package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectNameLayout(t *testing.T) {
	name := objectName("kowa", "/voice-messages/", "audio/webm;codecs=opus")

	assert.True(t, strings.HasPrefix(name, "kowa/voice-messages/"))
	assert.True(t, strings.HasSuffix(name, ".webm"))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".m4a", extensionFor("audio/x-m4a"))
	assert.Equal(t, ".jpg", extensionFor("IMAGE/JPEG"))
	assert.Equal(t, ".bin", extensionFor("application/octet-stream"))
}

func TestS3DeleteRejectsForeignURL(t *testing.T) {
	s := &S3Client{bucket: "media", region: "eu-west-3"}

	err := s.Delete(context.Background(), "https://storage.googleapis.com/media/kowa/x.webm")
	assert.Error(t, err)
}

func TestGCSDeleteRejectsForeignBucket(t *testing.T) {
	c := &CloudStorageClient{bucketName: "media"}

	err := c.Delete(context.Background(), gcsURLPrefix+"other/kowa/x.webm")
	assert.Error(t, err)
}
