// Package publish uploads a built site to an S3-compatible bucket.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/debemdeboas/notebook/internal/config"
	"github.com/debemdeboas/notebook/internal/util/compression"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

var publishLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	publishLogger = l
}

var ErrNoBucket = errors.New("publish.bucket is not configured")

// Uploader is the part of the S3 client the publisher needs.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Publisher struct {
	client  Uploader
	bucket  string
	prefix  string
	workers int
}

type Report struct {
	Files int
	Bytes int64
}

// NewS3Publisher builds a client for the configured endpoint with static
// credentials.
func NewS3Publisher(ctx context.Context, cfg config.PublishConfig, accessKeyID, accessKeySecret string, workers int) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3PublisherWithClient(client, cfg.Bucket, cfg.Prefix, workers), nil
}

func NewS3PublisherWithClient(client Uploader, bucket, prefix string, workers int) *S3Publisher {
	if workers < 1 {
		workers = 1
	}
	return &S3Publisher{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		workers: workers,
	}
}

// Key is the object key for a file at rel inside the output directory.
func (p *S3Publisher) Key(rel string) string {
	rel = filepath.ToSlash(rel)
	if p.prefix == "" {
		return rel
	}
	return p.prefix + "/" + rel
}

// Publish uploads every file under root. The first failed upload cancels
// the rest.
func (p *S3Publisher) Publish(ctx context.Context, fsys afero.Fs, root string) (*Report, error) {
	var files []string
	err := afero.Walk(fsys, root, func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", root, err)
	}

	var uploaded atomic.Int64
	var size atomic.Int64
	workers := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(p.workers)
	for _, name := range files {
		workers.Go(func(ctx context.Context) error {
			rel, err := filepath.Rel(root, name)
			if err != nil {
				return err
			}
			data, err := afero.ReadFile(fsys, name)
			if err != nil {
				return err
			}
			if err := p.put(ctx, rel, data); err != nil {
				return err
			}
			uploaded.Add(1)
			size.Add(int64(len(data)))
			return nil
		})
	}
	if err := workers.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Files: int(uploaded.Load()), Bytes: size.Load()}
	publishLogger.Info().Int("files", report.Files).Str("bucket", p.bucket).Msg("Site published")
	return report, nil
}

func (p *S3Publisher) put(ctx context.Context, rel string, data []byte) error {
	key := p.Key(rel)
	contentType, encoding := ContentHeaders(rel)

	input := &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(CacheControl(rel)),
	}
	if encoding != "" {
		input.ContentEncoding = aws.String(encoding)
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	publishLogger.Debug().Str("key", key).Int("size", len(data)).Msg("Uploaded")
	return nil
}

// The system mime tables disagree on some of these.
var siteTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".xml":  "application/xml",
	".svg":  "image/svg+xml",
}

// ContentHeaders returns the content type of the file and, for
// precompressed siblings, their content encoding.
func ContentHeaders(name string) (contentType, encoding string) {
	ext := path.Ext(name)
	if c, ok := compression.ForExtension(ext); ok {
		encoding = c.Encoding()
		name = strings.TrimSuffix(name, ext)
		ext = path.Ext(name)
	}

	contentType = siteTypes[ext]
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return contentType, encoding
}

// CacheControl keeps pages fresh and lets hashed assets be cached.
func CacheControl(name string) string {
	if strings.Contains(name, ".html") {
		return "no-cache"
	}
	return "public, max-age=86400"
}
