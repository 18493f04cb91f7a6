package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/flemzord/ircgram/internal/config"
)

// s3Uploader puts files into a bucket that is served publicly, typically
// behind a CDN. Keys get a random prefix so object names are not enumerable.
type s3Uploader struct {
	client       *s3.Client
	bucket       string
	publicURL    string
	randomLength int
}

func newS3Uploader(ctx context.Context, cfg config.S3Config, randomLength int) (*s3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}
	return &s3Uploader{
		client:       s3.NewFromConfig(awsCfg),
		bucket:       cfg.Bucket,
		publicURL:    strings.TrimRight(cfg.PublicURL, "/"),
		randomLength: randomLength,
	}, nil
}

func (u *s3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("s3: open file: %w", err)
	}
	defer f.Close()

	key := randomName(u.randomLength) + "/" + filepath.Base(localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	return u.publicURL + "/" + key, nil
}
