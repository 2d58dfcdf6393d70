package shipping

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Loader reads a rate table from a path or object key.
type Loader interface {
	// Load reads a JSON table, gunzipping it when the name ends in ".gz".
	Load(ctx context.Context, path string) (*Table, error)
}

// decodeTable parses and validates a table from r.
func decodeTable(r io.Reader, name string) (*Table, error) {
	if strings.HasSuffix(name, ".gz") {
		gzipReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", name, err)
		}
		defer gzipReader.Close()
		r = gzipReader
	}

	var table Table
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode shipping table %s: %w", name, err)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shipping table %s: %w", name, err)
	}

	return &table, nil
}

// fileLoader implements Loader for tables on the local file system.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based table loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "shipping-loader").Logger(),
	}
}

// Load reads a table file.
func (l *fileLoader) Load(ctx context.Context, path string) (*Table, error) {
	l.logger.Info().Str("file", path).Msg("loading shipping table")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open shipping table")
		return nil, fmt.Errorf("failed to open shipping table %s: %w", path, err)
	}
	defer file.Close()

	table, err := decodeTable(file, path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to read shipping table")
		return nil, err
	}

	l.logger.Info().
		Str("file", path).
		Int("methods", len(table.Methods)).
		Int("zones", len(table.Zones)).
		Msg("shipping table loaded successfully")

	return table, nil
}

// s3Loader implements Loader for tables stored in AWS S3.
type s3Loader struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Loader creates a new S3-based table loader.
func NewS3Loader(ctx context.Context, bucket, region string, logger zerolog.Logger) (Loader, error) {
	logger = logger.With().Str("component", "s3-shipping-loader").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 loader initialised")

	return &s3Loader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		logger: logger,
	}, nil
}

// Load reads a table object. key is the full S3 key including any prefix.
func (l *s3Loader) Load(ctx context.Context, key string) (*Table, error) {
	l.logger.Info().
		Str("bucket", l.bucket).
		Str("key", key).
		Msg("loading shipping table from S3")

	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("bucket", l.bucket).
			Str("key", key).
			Msg("failed to get object from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	table, err := decodeTable(result.Body, key)
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("failed to read shipping table from S3")
		return nil, err
	}

	l.logger.Info().
		Str("bucket", l.bucket).
		Str("key", key).
		Int("zones", len(table.Zones)).
		Msg("shipping table loaded successfully from S3")

	return table, nil
}

// fallbackLoader tries S3 first, then the local file system.
type fallbackLoader struct {
	s3Loader   Loader
	fileLoader Loader
	s3Prefix   string
	s3Enabled  bool
	logger     zerolog.Logger
}

// NewFallbackLoader creates a loader that tries S3 first, then falls back to
// the local file system. If s3Loader is nil only the file loader is used.
func NewFallbackLoader(s3Loader, fileLoader Loader, s3Prefix string, s3Enabled bool, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		s3Loader:   s3Loader,
		fileLoader: fileLoader,
		s3Prefix:   s3Prefix,
		s3Enabled:  s3Enabled,
		logger:     logger.With().Str("component", "shipping-fallback-loader").Logger(),
	}
}

// Load prepends the S3 prefix for the S3 attempt and uses path as-is locally.
func (l *fallbackLoader) Load(ctx context.Context, path string) (*Table, error) {
	if l.s3Enabled && l.s3Loader != nil {
		key := l.s3Prefix + path

		table, err := l.s3Loader.Load(ctx, key)
		if err == nil {
			return table, nil
		}

		l.logger.Warn().
			Err(err).
			Str("s3_key", key).
			Msg("failed to load from S3, falling back to local file system")
	}

	return l.fileLoader.Load(ctx, path)
}

// LoadTable returns the built-in table when path is empty, otherwise the
// table read through loader.
func LoadTable(ctx context.Context, loader Loader, path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	return loader.Load(ctx, path)
}
