// Package storage mirrors built directory zips to S3-compatible object
// storage and hands out presigned download URLs for them.
package storage

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/dirlist/internal/netx"
	sc "github.com/dmitrijs2005/dirlist/internal/server/config"
)

const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	uploadFile = netx.UploadFile
)

// S3Mirror uploads artifacts through presigned PUT URLs, so the server
// never needs more than presign rights on the bucket.
type S3Mirror struct {
	config *sc.Config
	http   *http.Client
}

func NewS3Mirror(config *sc.Config) *S3Mirror {
	return &S3Mirror{config: config, http: &http.Client{Timeout: 10 * time.Minute}}
}

// ZipKey maps a directory path relative to the root to its object key.
func ZipKey(relDir string) string {
	rel := strings.Trim(path.Clean("/"+strings.ReplaceAll(relDir, "\\", "/")), "/")
	return "zips/" + rel + ".zip"
}

func (m *S3Mirror) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(m.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			m.config.S3RootUser,
			m.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if m.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(m.config.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// Upload stores the file at localPath under key.
func (m *S3Mirror) Upload(ctx context.Context, key, localPath string) error {
	presignClient, err := m.getPresignClient(ctx)
	if err != nil {
		return err
	}

	bucket := m.config.S3Bucket
	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return err
	}

	return uploadFile(ctx, m.http, req.URL, localPath)
}

// PresignGet returns a temporary download URL for key.
func (m *S3Mirror) PresignGet(ctx context.Context, key string) (string, error) {
	presignClient, err := m.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := m.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
