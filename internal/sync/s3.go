package sync

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the part of the S3 client the destination uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination writes the export to an S3-compatible bucket. A key
// containing "{date}" gets the UTC export date substituted, which keeps one
// object per day instead of overwriting a single one.
type S3Destination struct {
	client putObjectAPI
	bucket string
	key    string
	now    func() time.Time
}

// NewS3Destination creates an S3 destination. A non-empty endpoint switches
// to path-style addressing (MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return newS3Destination(s3.NewFromConfig(cfg, s3opts...), bucket, key), nil
}

func newS3Destination(client putObjectAPI, bucket, key string) *S3Destination {
	return &S3Destination{client: client, bucket: bucket, key: key, now: time.Now}
}

// Name implements Destination.
func (d *S3Destination) Name() string { return "s3://" + d.bucket + "/" + d.key }

// ObjectKey returns the key the next write goes to.
func (d *S3Destination) ObjectKey() string {
	return strings.ReplaceAll(d.key, "{date}", d.now().UTC().Format("2006-01-02"))
}

// Write uploads data under ObjectKey.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.ObjectKey()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
