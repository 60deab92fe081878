// Package archive stores rendered reports in S3.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of the S3 client the archive uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures the archive.
type Options struct {
	Bucket string
	Prefix string
	Region string
	RunID  string
	Now    func() time.Time
}

// Store writes one object per report.
type Store struct {
	client PutObjectAPI
	opts   Options
}

// New loads the default AWS credential chain and builds a Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), opts)
}

// NewWithClient builds a Store around an existing S3 client.
func NewWithClient(client PutObjectAPI, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{client: client, opts: opts}, nil
}

// Name identifies the sink in logs.
func (s *Store) Name() string {
	return "s3-archive"
}

// Key returns the object key for a report produced at t.
func (s *Store) Key(t time.Time) string {
	name := s.opts.RunID
	if name == "" {
		name = t.UTC().Format("150405")
	}
	return path.Join(strings.Trim(s.opts.Prefix, "/"), t.UTC().Format("2006-01-02"), name+".md")
}

// Send uploads the report.
func (s *Store) Send(ctx context.Context, text string) error {
	key := s.Key(s.opts.Now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("upload report to s3://%s/%s: %w", s.opts.Bucket, key, err)
	}
	return nil
}
