package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/utils"
)

// s3API is the subset of the S3 client the gateway uses.
type s3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Gateway implements ports.FileSystem over a single bucket. Destination
// paths map to object keys without their leading slash; folders are key
// prefixes and need no creation.
type Gateway struct {
	client  s3API
	bucket  string
	region  string
	logger  ports.Logger
	metrics ports.Metrics

	mu     sync.Mutex
	writes map[string]struct{}
}

// NewGateway builds the S3 client from cfg and makes sure the bucket exists.
func NewGateway(ctx context.Context, cfg *config.StorageConfig, obs ports.Observability) (*Gateway, error) {
	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
	})

	g, err := newGateway(client, cfg.BucketOrPath, cfg.S3.Region, obs)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := g.ensureBucketExists(initCtx); err != nil {
		g.logger.Error("Failed to verify bucket existence", "error", err, "bucket", g.bucket)
		return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
	}

	g.logger.Info("S3 storage initialized", "bucket", g.bucket, "region", g.region)
	return g, nil
}

func newGateway(client s3API, bucket, region string, obs ports.Observability) (*Gateway, error) {
	logger, metrics, err := obs.ComponentsScoped("storage.s3")
	if err != nil {
		return nil, fmt.Errorf("failed to get observability components: %w", err)
	}

	return &Gateway{
		client:  client,
		bucket:  bucket,
		region:  region,
		logger:  logger,
		metrics: metrics,
		writes:  make(map[string]struct{}),
	}, nil
}

func (g *Gateway) FolderExists(ctx context.Context, folder string) (bool, error) {
	out, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(g.bucket),
		Prefix:  aws.String(folderPrefix(folder)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		g.metrics.IncrementCounter("s3.list.errors", nil)
		return false, fmt.Errorf("failed to list %s: %w", folder, err)
	}
	return len(out.Contents) > 0, nil
}

// CreateFolder is a no-op: prefixes exist as soon as an object is written.
func (g *Gateway) CreateFolder(ctx context.Context, folder string) error {
	return nil
}

// HasFileAboveSize only considers objects directly under the prefix.
func (g *Gateway) HasFileAboveSize(ctx context.Context, folder string, thresholdBytes int64) (bool, error) {
	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(g.bucket),
		Prefix:    aws.String(folderPrefix(folder)),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			g.metrics.IncrementCounter("s3.list.errors", nil)
			return false, fmt.Errorf("failed to list %s: %w", folder, err)
		}
		for _, obj := range page.Contents {
			if aws.ToInt64(obj.Size) > thresholdBytes {
				return true, nil
			}
		}
	}
	return false, nil
}

func (g *Gateway) SanitizeFileName(name string) string {
	return utils.SanitizeFileName(name)
}

func (g *Gateway) WriteBytes(ctx context.Context, filePath string, data []byte) error {
	return g.put(ctx, objectKey(filePath), data)
}

// CreateExclusive buffers the body and uploads it on Close. Exclusivity
// holds within this process only.
func (g *Gateway) CreateExclusive(ctx context.Context, filePath string) (io.WriteCloser, error) {
	key := objectKey(filePath)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.writes[key]; busy {
		return nil, fmt.Errorf("%s: %w", key, ports.ErrFileLocked)
	}
	g.writes[key] = struct{}{}

	return &objectWriter{ctx: ctx, gateway: g, key: key}, nil
}

func (g *Gateway) put(ctx context.Context, key string, data []byte) error {
	startTime := time.Now()

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		g.logger.Error("Failed to put object", "error", err, "bucket", g.bucket, "key", key)
		g.metrics.IncrementCounter("s3.put.errors", nil)
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}

	duration := time.Since(startTime)
	g.logger.Debug("Object stored", "key", key, "size_bytes", len(data), "duration_ms", duration.Milliseconds())
	g.metrics.IncrementCounter("s3.put.success", nil)
	g.metrics.RecordHistogram("s3.put.duration_ms", float64(duration.Milliseconds()), nil)
	g.metrics.RecordHistogram("s3.put.size", float64(len(data)), nil)
	return nil
}

func (g *Gateway) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.writes, key)
}

// ensureBucketExists checks the configured bucket and creates it when missing
func (g *Gateway) ensureBucketExists(ctx context.Context) error {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)})
	if err == nil {
		return nil
	}

	var notFound *s3types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	g.logger.Info("Bucket does not exist, attempting to create", "bucket", g.bucket)
	input := &s3.CreateBucketInput{Bucket: aws.String(g.bucket)}
	if g.region != "" && g.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(g.region),
		}
	}

	_, err = g.client.CreateBucket(ctx, input)
	var owned *s3types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

type objectWriter struct {
	ctx     context.Context
	gateway *Gateway
	key     string
	buf     bytes.Buffer
	closed  bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed object writer %s", w.key)
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.gateway.release(w.key)

	return w.gateway.put(w.ctx, w.key, w.buf.Bytes())
}

func objectKey(filePath string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(filePath, "\\", "/")), "/")
}

func folderPrefix(folder string) string {
	key := objectKey(folder)
	if key == "" || key == "." {
		return ""
	}
	return key + "/"
}

// buildAWSConfig builds the AWS configuration from the storage config
func buildAWSConfig(ctx context.Context, cfg *config.StorageConfig) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if cfg.S3.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.S3.Region))
	}

	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.S3.AccessKeyID,
				cfg.S3.SecretAccessKey,
				"",
			),
		))
	}

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}
