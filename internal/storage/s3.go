package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3Options configures an S3Disk.
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// S3Disk stores blobs in a bucket. Credentials come from the default AWS chain.
type S3Disk struct {
	bucket   string
	baseURL  string
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// NewS3Disk opens an AWS session for opts.
func NewS3Disk(opts S3Options) (*S3Disk, error) {
	awsCfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.Endpoint != "" {
		awsCfg.Endpoint = aws.String(opts.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	client := s3.New(sess)
	return newS3Disk(opts, client, s3manager.NewUploaderWithClient(client)), nil
}

func newS3Disk(opts S3Options, client s3iface.S3API, uploader s3manageriface.UploaderAPI) *S3Disk {
	base := opts.PublicBaseURL
	switch {
	case base != "":
	case opts.Endpoint != "":
		base = joinURL(opts.Endpoint, opts.Bucket)
	default:
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	return &S3Disk{bucket: opts.Bucket, baseURL: base, client: client, uploader: uploader}
}

func (d *S3Disk) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	input := &s3manager.UploadInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := d.uploader.UploadWithContext(ctx, input); err != nil {
		return fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return nil
}

// Delete removes key. S3 reports success for missing keys.
func (d *S3Disk) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = d.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (d *S3Disk) URL(key string) string {
	return joinURL(d.baseURL, key)
}
