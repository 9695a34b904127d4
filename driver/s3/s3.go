// Package s3 stores objects in an Amazon S3 (or S3-compatible) bucket
// under the key <prefix><address>/<path>.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/sagarc03/hubstore"
	"github.com/sagarc03/hubstore/driver"
)

func init() {
	driver.MustRegister(driver.Backend{
		Name:        "s3",
		Description: "Amazon S3 or S3-compatible object storage",
		Open: func(_ context.Context, cfg driver.Config) (hubstore.Driver, error) {
			return Open(cfg)
		},
	})
}

// Options configures a Store built from existing clients.
type Options struct {
	Bucket        string
	KeyPrefix     string
	ReadURLPrefix string
	PageSize      int
}

// Store is an S3-backed hubstore.Driver. It also implements hubstore.Reader.
type Store struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	keyPfx   string
	prefix   string
	pageSize int
}

// Open creates an AWS session from cfg.S3 and returns a Store.
// Credentials fall back to the SDK's default chain when no static keys are set.
func Open(cfg driver.Config) (*Store, error) {
	s3cfg := cfg.S3
	if s3cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: driver.s3.bucket is required", hubstore.ErrConfig)
	}

	awsCfg := aws.NewConfig()
	if s3cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(s3cfg.Region)
	}
	if s3cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(s3cfg.Endpoint)
	}
	if s3cfg.ForcePathStyle {
		awsCfg = awsCfg.WithS3ForcePathStyle(true)
	}
	if s3cfg.AccessKey != "" && s3cfg.SecretKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(s3cfg.AccessKey, s3cfg.SecretKey, ""))
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create AWS session: %w", err)
	}

	client := s3.New(sess)
	readPrefix := cfg.ReadURLPrefix
	if readPrefix == "" {
		readPrefix = defaultReadURLPrefix(s3cfg)
	}

	return New(client, s3manager.NewUploaderWithClient(client), Options{
		Bucket:        s3cfg.Bucket,
		KeyPrefix:     s3cfg.Prefix,
		ReadURLPrefix: readPrefix,
		PageSize:      cfg.EffectivePageSize(),
	}), nil
}

// New returns a Store over the given clients.
func New(client s3iface.S3API, uploader s3manageriface.UploaderAPI, opts Options) *Store {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = driver.DefaultPageSize
	}
	return &Store{
		client:   client,
		uploader: uploader,
		bucket:   opts.Bucket,
		keyPfx:   opts.KeyPrefix,
		prefix:   opts.ReadURLPrefix,
		pageSize: pageSize,
	}
}

func defaultReadURLPrefix(cfg driver.S3Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket + "/" + cfg.Prefix
	}
	if cfg.Region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", cfg.Bucket, cfg.Region, cfg.Prefix)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", cfg.Bucket, cfg.Prefix)
}

// ReadURLPrefix implements hubstore.Driver.
func (s *Store) ReadURLPrefix() string { return s.prefix }

// Store implements hubstore.Driver using a multipart-capable uploader,
// so bodies of unknown length are streamed.
func (s *Store) Store(ctx context.Context, req hubstore.StoreRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(req.Address, req.Path)),
		Body:   req.Body,
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("unable to upload %s/%s to bucket %q: %w", req.Address, req.Path, s.bucket, err)
	}

	return driver.JoinURL(s.prefix, req.Address, req.Path), nil
}

// ListFiles implements hubstore.Driver. The cursor is the last returned
// path, passed to S3 as StartAfter.
func (s *Store) ListFiles(ctx context.Context, address, page string) (hubstore.ListFilesResult, error) {
	if err := ctx.Err(); err != nil {
		return hubstore.ListFilesResult{}, err
	}

	after, err := hubstore.DecodePageCursor(page)
	if err != nil {
		return hubstore.ListFilesResult{}, err
	}

	nsPrefix := s.key(address, "")
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(nsPrefix),
		MaxKeys: aws.Int64(int64(s.pageSize)),
	}
	if after != "" {
		input.StartAfter = aws.String(nsPrefix + after)
	}

	out, err := s.client.ListObjectsV2WithContext(ctx, input)
	if err != nil {
		return hubstore.ListFilesResult{}, fmt.Errorf("unable to list %s in bucket %q: %w", address, s.bucket, err)
	}

	entries := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		entries = append(entries, strings.TrimPrefix(aws.StringValue(obj.Key), nsPrefix))
	}

	result := hubstore.ListFilesResult{Entries: entries}
	if aws.BoolValue(out.IsTruncated) && len(entries) > 0 {
		result.Page = hubstore.NextPage(hubstore.EncodePageCursor(entries[len(entries)-1]))
	}
	return result, nil
}

// Read implements hubstore.Reader.
func (s *Store) Read(ctx context.Context, address, path string) (hubstore.ReadResult, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(address, path)),
	})
	if err != nil {
		if isNotFound(err) {
			return hubstore.ReadResult{}, hubstore.ErrNotFound
		}
		return hubstore.ReadResult{}, fmt.Errorf("unable to download %s/%s from bucket %q: %w", address, path, s.bucket, err)
	}

	return hubstore.ReadResult{
		Body:        out.Body,
		ContentType: aws.StringValue(out.ContentType),
		Size:        aws.Int64Value(out.ContentLength),
		ETag:        strings.Trim(aws.StringValue(out.ETag), `"`),
		ModTime:     aws.TimeValue(out.LastModified),
	}, nil
}

func (s *Store) key(address, path string) string {
	return s.keyPfx + address + "/" + path
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) && awsErr.Code() == s3.ErrCodeNoSuchKey {
		return true
	}
	return false
}
