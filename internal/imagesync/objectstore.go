package imagesync

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ObjectStoreConfig describes the MinIO-compatible S3 endpoint spec §6.6's
// "object-store" configuration section names.
type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PathStyle must be true for most MinIO deployments, which do not
	// support virtual-hosted-style bucket addressing.
	PathStyle bool
}

// ObjectStore uploads image bytes to the configured bucket under the key
// scheme spec §6.5 specifies.
type ObjectStore struct {
	client *s3.S3
	bucket string
}

// NewObjectStore constructs an ObjectStore backed by aws-sdk-go's S3 client,
// pointed at a MinIO-compatible endpoint per spec §6.6 and the original's
// common/src/bin/minio.rs.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
	})
	if err != nil {
		return nil, fmt.Errorf("imagesync: new object store session: %w", err)
	}
	return &ObjectStore{client: s3.New(sess), bucket: cfg.Bucket}, nil
}

// Upload puts data under key, with mimeType as its Content-Type.
func (o *ObjectStore) Upload(ctx context.Context, key, mimeType string, data []byte) error {
	_, err := o.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("imagesync: upload %s: %w", key, err)
	}
	return nil
}
