// Package s3 uploads releases to an S3 compatible object store.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/internal/export"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/interfaces"
)

// Config contains S3 connection and layout settings
type Config struct {
	Region          string         `json:"region" yaml:"region" mapstructure:"region"`
	Bucket          string         `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Prefix          string         `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	Endpoint        string         `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	ForcePathStyle  bool           `json:"force_path_style" yaml:"force_path_style" mapstructure:"force_path_style"`
	AccessKeyID     string         `json:"access_key_id" yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string         `json:"secret_access_key" yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string         `json:"session_token" yaml:"session_token" mapstructure:"session_token"`
	MaxRetries      int            `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	PartSize        int64          `json:"part_size" yaml:"part_size" mapstructure:"part_size"`
	Timeout         time.Duration  `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	Options         export.Options `json:"options" yaml:"options" mapstructure:"options"`
}

// Sink writes each release under <prefix>/<run_id>/
type Sink struct {
	config   *Config
	uploader s3manageriface.UploaderAPI
	engine   *export.ExportEngine
	logger   *logrus.Logger
}

// NewSink creates an unconnected S3 sink
func NewSink(config *Config, logger *logrus.Logger) (*Sink, error) {
	if config == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "S3 config cannot be nil")
	}
	if config.Bucket == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "S3 bucket is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.PartSize == 0 {
		config.PartSize = s3manager.DefaultUploadPartSize
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Sink{
		config: config,
		engine: export.NewExportEngine(logger),
		logger: logger,
	}, nil
}

// NewSinkWithUploader creates a sink around an existing uploader
func NewSinkWithUploader(config *Config, uploader s3manageriface.UploaderAPI, logger *logrus.Logger) (*Sink, error) {
	s, err := NewSink(config, logger)
	if err != nil {
		return nil, err
	}
	s.uploader = uploader
	return s, nil
}

// Connect builds an AWS session and uploader
func (s *Sink) Connect(ctx context.Context) error {
	awsConfig := &aws.Config{
		Region:     aws.String(s.config.Region),
		MaxRetries: aws.Int(s.config.MaxRetries),
	}
	if s.config.AccessKeyID != "" && s.config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			s.config.AccessKeyID,
			s.config.SecretAccessKey,
			s.config.SessionToken,
		)
	}
	if s.config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(s.config.ForcePathStyle)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "failed to create AWS session")
	}
	s.uploader = s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = s.config.PartSize
	})

	s.logger.WithFields(logrus.Fields{
		"bucket":   s.config.Bucket,
		"region":   s.config.Region,
		"endpoint": s.config.Endpoint,
	}).Info("Connected to S3")
	return nil
}

// Name implements interfaces.ResultSink
func (s *Sink) Name() string {
	return "s3"
}

// Write implements interfaces.ResultSink
func (s *Sink) Write(ctx context.Context, release *interfaces.Release) error {
	if s.uploader == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "S3 sink is not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.upload(ctx, release, export.FormatCSV, "release.csv", "text/csv"); err != nil {
		return err
	}
	if release.Report == nil {
		return nil
	}
	return s.upload(ctx, release, export.FormatJSON, "report.json", "application/json")
}

// Key returns the object key of name within a run
func (s *Sink) Key(runID, name string) string {
	return path.Join(strings.Trim(s.config.Prefix, "/"), runID, name)
}

func (s *Sink) upload(ctx context.Context, release *interfaces.Release, format export.Format, name, contentType string) error {
	var buf bytes.Buffer
	if err := s.engine.Export(ctx, release, format, &buf, s.config.Options); err != nil {
		return err
	}
	key := s.Key(release.RunID, name)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
		Metadata: map[string]*string{
			"run-id": aws.String(release.RunID),
		},
	})
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeUploadFailed,
			fmt.Sprintf("failed to upload s3://%s/%s", s.config.Bucket, key))
	}
	s.logger.WithFields(logrus.Fields{
		"bucket": s.config.Bucket,
		"key":    key,
		"bytes":  buf.Len(),
	}).Info("Uploaded release object")
	return nil
}

// Close implements interfaces.ResultSink
func (s *Sink) Close() error {
	return nil
}
