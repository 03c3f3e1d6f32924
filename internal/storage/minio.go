package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var MinioClient *minio.Client

var bucketName string

// InitMinio connects to the blob store and makes sure the PDF bucket exists.
func InitMinio(endpoint, accessKey, secretKey, bucket string) {
	useSSL := false // Set to true if using HTTPS

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		log.Printf("Warning: Failed to check bucket existence: %v", err)
	} else if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil {
			log.Printf("Warning: Failed to create bucket: %v", err)
		} else {
			log.Printf("Created bucket: %s", bucket)
		}
	}

	MinioClient = client
	bucketName = bucket
	log.Println("Connected to MinIO")
}

// Bucket returns the configured PDF bucket name.
func Bucket() string { return bucketName }

// PutPDF uploads one object into the PDF bucket.
func PutPDF(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := MinioClient.PutObject(ctx, bucketName, objectName, r, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", objectName, err)
	}
	return nil
}

// CopyPDF makes a server-side copy of an object within the PDF bucket,
// used when a caller saves an independent copy of a shared document.
func CopyPDF(ctx context.Context, srcObject, dstObject string) error {
	_, err := MinioClient.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: bucketName, Object: dstObject},
		minio.CopySrcOptions{Bucket: bucketName, Object: srcObject},
	)
	if err != nil {
		return fmt.Errorf("copy object %s: %w", srcObject, err)
	}
	return nil
}

// RemovePDF deletes one object from the PDF bucket.
func RemovePDF(ctx context.Context, objectName string) error {
	err := MinioClient.RemoveObject(ctx, bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove object %s: %w", objectName, err)
	}
	return nil
}

// PresignPDF returns a time-boxed GET URL for an object. The proxy wraps
// this URL so the storage location never reaches the browser directly.
func PresignPDF(ctx context.Context, objectName string, expiry time.Duration) (*url.URL, error) {
	u, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, expiry, nil)
	if err != nil {
		return nil, fmt.Errorf("presign object %s: %w", objectName, err)
	}
	return u, nil
}
