package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorageClient is the object storage interface the gateway consumes.
type ObjectStorageClient interface {
	Connect(endpoint string, accessKeyID string, secretAccessKey string, useSSL bool) error
	UploadJSON(ctx context.Context, bucketName string, objectName string, data []byte) error
}

// ObjectStorage holds the object storage client instance
type ObjectStorage struct {
	Conn *minio.Client
}

// NewObjectStorage initialization
func NewObjectStorage() ObjectStorageClient {
	return &ObjectStorage{}
}

// Connect establishes the object storage connection using client
func (o *ObjectStorage) Connect(endpoint string, accessKeyID string, secretAccessKey string, useSSL bool) error {
	var err error
	o.Conn, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client, %v", err)
	}

	// Check connection by listing buckets
	ctx := context.Background()
	_, err = o.Conn.ListBuckets(ctx)
	if err != nil {
		return fmt.Errorf("failed to establish minio connection, %v", err)
	}

	return nil
}

// UploadJSON writes one JSON object into the bucket, creating the bucket on
// first use. Overwrites if the same object name already exists.
func (o *ObjectStorage) UploadJSON(ctx context.Context, bucketName string, objectName string, data []byte) error {
	err := o.Conn.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := o.Conn.BucketExists(ctx, bucketName)
		if !(errBucketExists == nil && exists) {
			return fmt.Errorf("failed to create bucket, %v", err)
		}
	}

	_, err = o.Conn.PutObject(ctx, bucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s, %v", objectName, err)
	}

	return nil
}
