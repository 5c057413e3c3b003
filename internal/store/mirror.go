package store

import (
	"bytes"
	"context"
	"time"

	"gastrolog/internal/hashcodec"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RemoteMirror receives a best-effort copy of every blob the Store
// commits locally, for off-site durability. A failed or slow mirror must
// never block or fail a Put; the Store only ever logs mirror errors.
type RemoteMirror interface {
	Mirror(ctx context.Context, h hashcodec.Hash, envelope []byte) error
}

// SetMirror attaches a RemoteMirror. Every subsequent successful local
// Put is also offered to the mirror in the background. A Store with no
// mirror set behaves exactly as before.
func (s *Store) SetMirror(m RemoteMirror) {
	s.mirror = m
}

// mirrorAsync offers envelope to the attached mirror, if any, without
// blocking the caller. Mirror failures are logged, never surfaced: the
// local Store is the durability guarantee spec.md §4.2 makes, the mirror
// is a bonus.
func (s *Store) mirrorAsync(h hashcodec.Hash, envelope []byte) {
	if s.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mirror.Mirror(ctx, h, envelope); err != nil {
			s.logger.Warn("remote mirror failed", "hash", h.String(), "error", err)
		}
	}()
}

// S3Mirror is a RemoteMirror backed by an S3 (or S3-compatible) bucket.
// Each blob is uploaded under its hash as the object key, so the mirror
// is itself content-addressed and re-running a mirror pass is idempotent.
type S3Mirror struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Mirror builds an S3Mirror for bucket, using credentials resolved
// the standard AWS SDK way (environment, shared config, or instance
// role). prefix is prepended to every object key and may be empty.
func NewS3Mirror(ctx context.Context, bucket, prefix string) (*S3Mirror, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &S3Mirror{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (m *S3Mirror) key(h hashcodec.Hash) string {
	if m.prefix == "" {
		return h.String()
	}
	return m.prefix + "/" + h.String()
}

// Mirror uploads envelope under h's content address. PutObject overwrites
// any object already at that key, but since the key is the hash of the
// content, every write to a given key carries identical bytes.
func (m *S3Mirror) Mirror(ctx context.Context, h hashcodec.Hash, envelope []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(h)),
		Body:   bytes.NewReader(envelope),
	})
	return err
}
