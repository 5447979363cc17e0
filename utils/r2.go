// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"event-platform/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Store writes objects to a Cloudflare R2 bucket through the S3 API.
type R2Store struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewR2Store(ctx context.Context, cfg config.R2) (*R2Store, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	cdnBaseURL := strings.TrimRight(cfg.CDNBaseURL, "/")
	if cdnBaseURL == "" {
		cdnBaseURL = endpoint + "/" + cfg.Bucket
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return &R2Store{client: client, bucket: cfg.Bucket, cdnBaseURL: cdnBaseURL}, nil
}

// PutJSON uploads body under key and returns its public URL.
func (s *R2Store) PutJSON(ctx context.Context, key string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to R2: %w", key, err)
	}
	return s.cdnBaseURL + "/" + key, nil
}
