// Package archive optionally uploads a rendered WAV output and a small
// JSON manifest to S3 after RenderEdlWindow completes. This is an output
// sink, not a media source — inputs are still read from local files only.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archive uploads render outputs under a fixed key prefix, addressed
// by the content hash of the rendered file.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config configures an S3Archive.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
	Prefix   string
}

// NewS3Archive loads the default AWS credential chain and returns a
// ready-to-use archive client.
func NewS3Archive(ctx context.Context, cfg Config) (*S3Archive, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Manifest describes an archived render, uploaded alongside the WAV file.
type Manifest struct {
	EdlID           string    `json:"edl_id"`
	Revision        string    `json:"revision"`
	StartSamples    int64     `json:"start_samples"`
	DurationSamples int64     `json:"duration_samples"`
	SHA256          string    `json:"sha256"`
	ArchivedAt      time.Time `json:"archived_at"`
}

// UploadRender uploads localPath's bytes and a manifest to
// "<prefix><sha256>.wav" and "<prefix><sha256>.manifest.json".
func (a *S3Archive) UploadRender(ctx context.Context, localPath string, manifest Manifest) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("archive: read local render: %w", err)
	}

	wavKey := a.prefix + manifest.SHA256 + ".wav"
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(wavKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("audio/wav"),
	}); err != nil {
		return fmt.Errorf("archive: put wav: %w", err)
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest: %w", err)
	}
	manifestKey := a.prefix + manifest.SHA256 + ".manifest.json"
	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(manifestJSON),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("archive: put manifest: %w", err)
	}
	return nil
}
