// Package s3store implements the remote.Store interface on an
// S3-compatible bucket. Probing heads the resolved object key directly;
// the local fingerprint is attached as object metadata at upload so later
// probes can compare content hashes.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/puffinapp/puffin-sync/internal/common"
	"github.com/puffinapp/puffin-sync/internal/fingerprint"
	"github.com/puffinapp/puffin-sync/internal/remote"
)

// hashMetadataKey is the object-metadata key carrying the uploader's
// content hash. S3 normalizes metadata keys to lower case.
const hashMetadataKey = "content-sha256"

// API is the subset of the S3 client the store uses; satisfied by
// *s3.Client and by test fakes.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configure the bucket connection.
type Options struct {
	BaseEndpoint string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
}

type Store struct {
	api    API
	bucket string
	prefix string
}

// New builds a Store against a live S3 endpoint.
func New(ctx context.Context, opts Options) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey, opts.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithAPI(client, opts.Bucket, opts.Prefix), nil
}

// NewWithAPI wires an existing API implementation; used by tests.
func NewWithAPI(api API, bucket, prefix string) *Store {
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

// key resolves the object key for a ref: the stored handle in file-based
// mode, the well-known name under the configured prefix otherwise.
func (s *Store) key(ref remote.Ref) string {
	if ref.FileID != "" {
		return ref.FileID
	}
	return path.Join(s.prefix, ref.FileName)
}

// Probe implements remote.Store. The object key is fully determined by
// the ref (stored handle, or prefix plus well-known name), so a single
// HeadObject answers existence and metadata in every mode.
func (s *Store) Probe(ctx context.Context, ref remote.Ref) (*remote.Metadata, error) {
	return s.head(ctx, s.key(ref))
}

func (s *Store) head(ctx context.Context, key string) (*remote.Metadata, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return &remote.Metadata{Exists: false}, nil
		}
		return nil, fmt.Errorf("%w: head object: %v", common.ErrProbe, err)
	}

	m := &remote.Metadata{Exists: true, FileID: key, Name: path.Base(key)}
	if out.LastModified != nil {
		m.ModifiedAt = *out.LastModified
	}
	m.Hash = out.Metadata[hashMetadataKey]
	return m, nil
}

// Upload implements remote.Store.
func (s *Store) Upload(ctx context.Context, ref remote.Ref, data []byte) (*remote.Metadata, error) {
	key := s.key(ref)

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: map[string]string{hashMetadataKey: fingerprint.Sum(data)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put object: %v", common.ErrExchange, err)
	}

	meta, err := s.head(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: head after upload: %v", common.ErrExchange, err)
	}
	return meta, nil
}

// Download implements remote.Store.
func (s *Store) Download(ctx context.Context, ref remote.Ref) ([]byte, *remote.Metadata, error) {
	meta, err := s.Probe(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if !meta.Exists {
		return nil, nil, fmt.Errorf("%w: no remote backup object", common.ErrNotFound)
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(meta.FileID),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: get object: %v", common.ErrExchange, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read object body: %v", common.ErrExchange, err)
	}
	return data, meta, nil
}
