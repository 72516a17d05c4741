package datasource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/salesdash/internal/logging"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// S3Settings locate CSV snapshots in an S3-compatible bucket. Each dataset is
// stored as <Prefix>/<dataset>.csv with a header row.
type S3Settings struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// ObjectGetter is the part of the S3 client the source uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Seams for tests.
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) ObjectGetter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type S3Source struct {
	client ObjectGetter
	bucket string
	prefix string
	logger logging.Logger
}

func NewS3Source(ctx context.Context, s S3Settings, l logging.Logger) (*S3Source, error) {
	if s.Bucket == "" {
		return nil, fmt.Errorf("%w: missing S3_BUCKET", ErrConfig)
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s.Region)}
	if s.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: aws config: %v", ErrConfig, err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3SourceWithClient(client, s.Bucket, s.Prefix, l), nil
}

func NewS3SourceWithClient(client ObjectGetter, bucket, prefix string, l logging.Logger) *S3Source {
	if l == nil {
		l = logging.Nop()
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix, logger: l}
}

func (s *S3Source) Name() string { return "s3" }

func (s *S3Source) key(dataset string) string {
	return path.Join(s.prefix, dataset+".csv")
}

// FetchRows reads the dataset snapshot. A missing object yields an empty
// table.
func (s *S3Source) FetchRows(ctx context.Context, q Query) (*Table, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	key := s.key(q.Dataset)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return &Table{Rows: [][]any{}}, nil
		}
		s.logger.Error(ctx, "s3 get failed", "bucket", s.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer out.Body.Close()

	t, err := readCSV(out.Body, q.limit())
	if err != nil {
		s.logger.Error(ctx, "s3 snapshot unreadable", "bucket", s.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, key, err)
	}
	return t, nil
}

func (s *S3Source) Close() error { return nil }

// readCSV parses a header row followed by at most limit data rows. Cells that
// parse as integers or floats are returned as int64 or float64.
func readCSV(r io.Reader, limit int) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Rows: [][]any{}}, nil
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: header, Rows: [][]any{}}
	for len(t.Rows) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = parseCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseCell(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
