package infrastructure

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/yt-sync-go/internal/domain"
	"go.uber.org/zap"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
}

func (f *fakeBucket) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = body
	f.meta[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archiver_UploadsCompletedJobs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "Clip [abc].mp4")
	require.NoError(t, os.WriteFile(file, []byte("media"), 0644))

	bucket := &fakeBucket{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
	a := NewS3Archiver(bucket, "media-bucket", "yt-sync", zap.NewNop())

	job := sampleJob()
	job.State = domain.JobDone
	job.FilePath = file

	a.OnJobEvent(domain.NewJobEvent(domain.EventJobProgress, job))
	a.OnJobEvent(domain.NewJobEvent(domain.EventJobDone, job))
	a.Close()

	key := "yt-sync/PL1/Clip [abc].mp4"
	assert.Equal(t, key, a.Key(job))
	require.Contains(t, bucket.objects, key)
	assert.Equal(t, "media", string(bucket.objects[key]))
	assert.Equal(t, "abc", bucket.meta[key]["video-id"])
	assert.Len(t, bucket.objects, 1)
}

func TestS3Archiver_MissingFile(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
	a := NewS3Archiver(bucket, "b", "", zap.NewNop())
	defer a.Close()

	job := sampleJob()
	job.FilePath = filepath.Join(t.TempDir(), "gone.mp4")
	assert.Error(t, a.Upload(context.Background(), job))
	assert.Empty(t, bucket.objects)
}
