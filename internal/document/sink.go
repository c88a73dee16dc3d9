// Package document accepts pet-registration uploads and hands them to an
// opaque storage sink.
package document

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Object is a stored document.
type Object struct {
	Key         string
	ContentType string
	Body        []byte
	Metadata    map[string]string
}

// Sink stores documents and returns where they ended up.
type Sink interface {
	Put(ctx context.Context, obj Object) (location string, err error)
}

// MemorySink keeps objects in memory. It is the default when no bucket is
// configured.
type MemorySink struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string]Object)}
}

func (s *MemorySink) Put(_ context.Context, obj Object) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj.Body = bytes.Clone(obj.Body)
	s.objects[obj.Key] = obj
	return "memory://" + obj.Key, nil
}

// Get returns a stored object.
func (s *MemorySink) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ObjectPutter is the subset of *s3.Client the sink needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink stores documents in an S3 bucket.
type S3Sink struct {
	client ObjectPutter
	bucket string
	region string
}

// NewS3Sink loads the default AWS credential chain for region.
func NewS3Sink(ctx context.Context, bucket, region string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, region), nil
}

// NewS3SinkWithClient builds a sink over an existing client.
func NewS3SinkWithClient(client ObjectPutter, bucket, region string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, region: region}
}

func (s *S3Sink) Put(ctx context.Context, obj Object) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.Key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(obj.ContentType),
		Metadata:    obj.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, obj.Key), nil
}
