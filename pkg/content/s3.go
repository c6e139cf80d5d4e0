package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store stores blobs in an S3 bucket, one object per version.
type S3Store struct {
	client s3API
	bucket string
}

// NewS3Store creates an S3-backed store over the given client and bucket.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Put uploads data under key. Overwriting the same key is idempotent.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/markdown"),
	})
	if err != nil {
		return "", &StoreError{Op: "put", Key: key, Err: err}
	}
	return key, nil
}

// Get downloads the blob at location. Returns ErrNotFound for missing keys.
func (s *S3Store) Get(ctx context.Context, location string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("s3 get %s: %w", location, ErrNotFound)
		}
		return nil, &StoreError{Op: "get", Key: location, Err: err}
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &StoreError{Op: "read", Key: location, Err: err}
	}
	return data, nil
}

// Delete removes the blob at location. S3 deletes are idempotent, so absent
// keys succeed.
func (s *S3Store) Delete(ctx context.Context, location string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		return &StoreError{Op: "delete", Key: location, Err: err}
	}
	return nil
}

// Walk lists every object key in the bucket, following continuation tokens.
func (s *S3Store) Walk(ctx context.Context, fn func(key string, modified time.Time) error) error {
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return &StoreError{Op: "list", Key: "", Err: err}
		}
		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			var modified time.Time
			if obj.LastModified != nil {
				modified = *obj.LastModified
			}
			if err := fn(*obj.Key, modified); err != nil {
				return err
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return nil
		}
		token = out.NextContinuationToken
	}
}

// URI renders the s3:// form of a location.
func (s *S3Store) URI(location string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, location)
}

var _ Store = (*S3Store)(nil)
