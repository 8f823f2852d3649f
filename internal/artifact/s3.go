package artifact

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store keeps permanent artifacts in an S3 bucket. Objects are written
// under KeyPrefix and served back from PublicURL.
type S3Store struct {
	Client    *s3.Client
	Bucket    string
	KeyPrefix string
	PublicURL string
}

// NewS3Store builds an object-store backend.
func NewS3Store(client *s3.Client, bucket, keyPrefix, publicURL string) *S3Store {
	return &S3Store{
		Client:    client,
		Bucket:    bucket,
		KeyPrefix: keyPrefix,
		PublicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Commit uploads the staged file to the bucket under KeyPrefix/name.
func (s *S3Store) Commit(ctx context.Context, stagedPath, name string) (*Ref, error) {
	src, err := os.Open(stagedPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	key := path.Join(s.KeyPrefix, name)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, err
	}

	return &Ref{Name: name, URL: fmt.Sprintf("%s/%s", s.PublicURL, key)}, nil
}
