package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/yourusername/yt-sync-go/internal/domain"
	"go.uber.org/zap"
)

// objectPutter is the part of *s3.Client the archiver uses
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver copies completed downloads to an S3 bucket in the background.
// Failures are logged and never affect the job or the catalog.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger

	uploads chan domain.Job
	wg      sync.WaitGroup
	once    sync.Once
}

// NewS3ArchiverFromConfig loads AWS credentials from the default chain
func NewS3ArchiverFromConfig(ctx context.Context, cfg *domain.ArchiveConfig, logger *zap.Logger) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Archiver(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3Archiver creates an archiver and starts its upload worker
func NewS3Archiver(client objectPutter, bucket, prefix string, logger *zap.Logger) *S3Archiver {
	a := &S3Archiver{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		logger:  logger.Named("archive"),
		uploads: make(chan domain.Job, 64),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// OnJobEvent queues completed jobs for upload
func (a *S3Archiver) OnJobEvent(event domain.JobEvent) {
	if event.Type != domain.EventJobDone || event.Job.FilePath == "" {
		return
	}
	select {
	case a.uploads <- event.Job:
	default:
		a.logger.Warn("archive queue full, skipping upload", zap.String("file", event.Job.FilePath))
	}
}

// Close stops accepting uploads and waits for pending ones
func (a *S3Archiver) Close() {
	a.once.Do(func() { close(a.uploads) })
	a.wg.Wait()
}

// Key returns the object key for a job's file
func (a *S3Archiver) Key(job domain.Job) string {
	return path.Join(a.prefix, job.PlaylistID, filepath.Base(job.FilePath))
}

func (a *S3Archiver) run() {
	defer a.wg.Done()
	for job := range a.uploads {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		if err := a.Upload(ctx, job); err != nil {
			a.logger.Error("archive upload failed",
				zap.String("job_id", job.ID),
				zap.String("file", job.FilePath),
				zap.Error(err))
		}
		cancel()
	}
}

// Upload stores one file synchronously
func (a *S3Archiver) Upload(ctx context.Context, job domain.Job) error {
	f, err := os.Open(job.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", job.FilePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", job.FilePath, err)
	}

	key := a.Key(job)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		Metadata: map[string]string{
			"video-id":    job.VideoID,
			"playlist-id": job.PlaylistID,
			"quality":     string(job.Quality),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	a.logger.Info("archived download",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int64("bytes", info.Size()))
	return nil
}
