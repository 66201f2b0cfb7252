// Package blobstore implements the content-addressed document store
// contract (spec §4.2): put(bucket, key, bytes) -> location, get(location)
// -> bytes. Adapted from the teacher's pkg/object-storage/s3 client, kept
// on aws-sdk-go-v2 so it works unchanged against AWS S3 or an S3-compatible
// endpoint such as MinIO.
package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ironvale-labs/dtcforge/pkg/errors"
)

// Store is the blob store used only by the Crawl stage (put) and the
// Chunk stage (get), per spec §4.2. Keys are "<doc-id>.<ext>"; a Location
// is "<bucket>/<key>".
type Store struct {
	endpoint string
	region   string
	bucket   string
	client   *s3.Client
}

// New builds a Store against an S3-compatible endpoint. endpoint may be
// empty to use AWS's default resolver.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string) (*Store, error) {
	st := &Store{endpoint: endpoint, region: region, bucket: bucket}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{AccessKeyID: accessKey, SecretAccessKey: secretKey},
		}),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, errors.Wrap(err, "blobstore.New", "failed to load aws config")
	}

	st.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})
	return st, nil
}

// Put writes content under key in bucket, returning the location handed
// back to callers for later Get. Bucket write-once-per-key is guaranteed
// by the pipeline (document IDs are unique, spec §5), not by this store.
func (s *Store) Put(ctx context.Context, bucket, key string, content []byte) (string, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	key = strings.TrimPrefix(key, "/")

	uploader := manager.NewUploader(s.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return "", errors.Wrap(err, "blobstore.Put", "upload failed")
	}
	return bucket + "/" + key, nil
}

// Get fetches the bytes at location ("<bucket>/<key>").
func (s *Store) Get(ctx context.Context, location string) ([]byte, error) {
	bucket, key, ok := splitLocation(location)
	if !ok {
		return nil, errors.New("blobstore.Get", "malformed location", nil)
	}

	getCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.GetObject(getCtx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrap(err, "blobstore.Get", "download failed")
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "blobstore.Get", "failed reading body")
	}
	return content, nil
}

func splitLocation(location string) (bucket, key string, ok bool) {
	idx := strings.IndexByte(location, '/')
	if idx <= 0 || idx == len(location)-1 {
		return "", "", false
	}
	return location[:idx], location[idx+1:], true
}
