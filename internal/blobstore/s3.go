package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// S3Config carries everything needed to reach an S3-compatible store.
type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UploadChunkSize int64
	FetchChunkSize  int64
}

// S3Store implements Store against any S3-compatible endpoint (R2, MinIO,
// AWS). Constructed once in main and injected; Close releases nothing for
// this backend but keeps the capability's lifecycle explicit.
type S3Store struct {
	client          *s3.Client
	bucket          string
	uploadChunkSize int64
	fetchChunkSize  int64
}

func NewS3Store(cfg S3Config) *S3Store {
	if cfg.UploadChunkSize <= 0 {
		cfg.UploadChunkSize = 512 << 10
	}
	if cfg.FetchChunkSize <= 0 {
		cfg.FetchChunkSize = 2 << 20
	}

	awsCfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Region:      cfg.Region,
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:          client,
		bucket:          cfg.BucketName,
		uploadChunkSize: cfg.UploadChunkSize,
		fetchChunkSize:  cfg.FetchChunkSize,
	}
}

func (s *S3Store) Connect(ctx context.Context) error {
	authorized, err := s.IsAuthorized(ctx)
	if err != nil {
		return err
	}
	if !authorized {
		log.Warn().Str("bucket", s.bucket).Msg("Blob store reachable but not authorized")
	} else {
		log.Info().Str("bucket", s.bucket).Msg("Successfully connected to blob store")
	}
	return nil
}

// IsAuthorized probes the bucket. Access failures report false rather than
// an error so callers can distinguish "wrong credentials" from "store
// unreachable".
func (s *S3Store) IsAuthorized(ctx context.Context) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		if errors.Is(classify(err), ErrNotAuthorized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3Store) UploadChunked(ctx context.Context, r io.Reader, size int64, meta ObjectMetadata, progress ProgressFunc) (string, error) {
	objectID := fmt.Sprintf("%s/%s_%s", meta.Folder, uuid.New(), meta.Filename)

	// PutObject drains the reader itself; the chunkedReader wrapper turns
	// that stream into fixed-size chunks with a progress tick after each.
	body := &chunkedReader{
		r:         r,
		chunkSize: s.uploadChunkSize,
		total:     size,
		progress:  progress,
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectID),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", classify(err)
	}
	return objectID, nil
}

func (s *S3Store) FetchChunked(ctx context.Context, objectID string, w io.Writer, progress ProgressFunc) (int64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return 0, classify(err)
	}
	defer out.Body.Close()

	total := int64(-1)
	if out.ContentLength != nil {
		total = *out.ContentLength
	}

	return CopyChunked(w, out.Body, s.fetchChunkSize, total, progress)
}

func (s *S3Store) DeleteByID(ctx context.Context, objectID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *S3Store) Close() error {
	return nil
}

// classify maps S3 API failures onto the typed sentinels. Anything
// unrecognized passes through unchanged for the error middleware to treat
// as an external-service failure.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Unauthorized":
		return fmt.Errorf("%w: %s", ErrNotAuthorized, apiErr.ErrorMessage())
	case "EntityTooLarge", "MaxMessageLengthExceeded":
		return fmt.Errorf("%w: %s", ErrObjectTooLarge, apiErr.ErrorMessage())
	case "InvalidArgument", "UnsupportedMediaType":
		return fmt.Errorf("%w: %s", ErrUnsupportedMedia, apiErr.ErrorMessage())
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, apiErr.ErrorMessage())
	}
	return err
}

// chunkedReader caps each Read at chunkSize and reports cumulative
// progress after every chunk handed to the consumer.
type chunkedReader struct {
	r         io.Reader
	chunkSize int64
	total     int64
	sent      int64
	progress  ProgressFunc
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if int64(len(p)) > c.chunkSize {
		p = p[:c.chunkSize]
	}
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.progress != nil {
			c.progress(c.sent, c.total)
		}
	}
	return n, err
}

// CopyChunked copies src to dst in fixed-size chunks, invoking progress
// after each chunk. Shared by the S3 and in-memory stores.
func CopyChunked(dst io.Writer, src io.Reader, chunkSize, total int64, progress ProgressFunc) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = 2 << 20
	}
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

var _ Store = (*S3Store)(nil)
