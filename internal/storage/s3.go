package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	log "github.com/sirupsen/logrus"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
)

const s3Scheme = "s3://"

// S3 stores reports as objects under a key prefix of a bucket. Paths have the
// form s3://bucket/key.
type S3 struct {
	bucket   string
	prefix   string
	svc      s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// NewS3 creates the S3 clients for region, checking the bucket exists.
func NewS3(bucket, region, prefix string) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}
	svc := s3.New(sess)
	if err := checkBucketExists(svc, bucket); err != nil {
		return nil, err
	}
	return newS3WithClients(bucket, prefix, svc, s3manager.NewUploader(sess)), nil
}

func newS3WithClients(bucket, prefix string, svc s3iface.S3API, uploader s3manageriface.UploaderAPI) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{bucket: bucket, prefix: prefix, svc: svc, uploader: uploader}
}

func checkBucketExists(svc s3iface.S3API, bucket string) error {
	_, err := svc.HeadBucket(&s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to check if bucket %s exists: %w", bucket, err)
	}
	return nil
}

func (s *S3) objectPath(key string) string {
	return s3Scheme + s.bucket + "/" + key
}

// ParseS3Path splits s3://bucket/key.
func ParseS3Path(p string) (bucket, key string, err error) {
	if !strings.HasPrefix(p, s3Scheme) {
		return "", "", fmt.Errorf("invalid S3 path %q", p)
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(p, s3Scheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 path %q", p)
	}
	return bucket, key, nil
}

// key validates p belongs to the bucket and prefix of the store.
func (s *S3) key(p string) (string, error) {
	bucket, key, err := ParseS3Path(p)
	if err != nil {
		return "", err
	}
	if bucket != s.bucket || !strings.HasPrefix(key, s.prefix) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %s", ErrOutsideStore, p)
	}
	return key, nil
}

func (s *S3) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	secure := upload.SecureFilename(name)
	if secure == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	key := s.prefix + secure
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("text/html"),
		Body:        r,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file %s to bucket %s: %w", secure, s.bucket, err)
	}
	log.Debugf("S3.Save(): uploaded %s", s.objectPath(key))
	return s.objectPath(key), nil
}

func (s *S3) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}
	out, err := s.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", p, err)
	}
	return out.Body, nil
}

func (s *S3) List(ctx context.Context) ([]Object, error) {
	objects := []Object{}
	err := s.svc.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			objects = append(objects, Object{
				Path:    s.objectPath(key),
				Name:    path.Base(key),
				ModTime: aws.TimeValue(obj.LastModified),
				Size:    aws.Int64Value(obj.Size),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, err)
	}
	return objects, nil
}

func (s *S3) Remove(ctx context.Context, p string) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	_, err = s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", p, err)
	}
	return nil
}
