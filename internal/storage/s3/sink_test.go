package s3

import (
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/export"
	"github.com/inferloop/tabanon/internal/testutil"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/interfaces"
	"github.com/inferloop/tabanon/pkg/models"
)

type fakeUploader struct {
	s3manageriface.UploaderAPI
	objects map[string]string
	types   map[string]string
	err     error
}

func (f *fakeUploader) UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string]string)
		f.types = make(map[string]string)
	}
	key := aws.StringValue(input.Bucket) + "/" + aws.StringValue(input.Key)
	f.objects[key] = string(body)
	f.types[key] = aws.StringValue(input.ContentType)
	return &s3manager.UploadOutput{Location: "s3://" + key}, nil
}

func testRelease(t *testing.T) *interfaces.Release {
	ds, err := models.NewDataset([]models.Attribute{{Name: "zip", Role: models.RoleQuasiIdentifier}}, [][]string{{"816**"}, {"819**"}})
	require.NoError(t, err)
	return &interfaces.Release{RunID: "run-1", Dataset: ds, Report: map[string]int{"records": 2}}
}

func TestNewSinkValidation(t *testing.T) {
	_, err := NewSink(nil, nil)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))

	_, err = NewSink(&Config{}, nil)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))

	s, err := NewSink(&Config{Bucket: "releases"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.config.Region)
	assert.Equal(t, 3, s.config.MaxRetries)
	assert.Equal(t, "s3", s.Name())
}

func TestWriteUploadsReleaseAndReport(t *testing.T) {
	uploader := &fakeUploader{}
	s, err := NewSinkWithUploader(&Config{
		Bucket:  "releases",
		Prefix:  "/census/",
		Options: export.DefaultOptions(),
	}, uploader, testutil.NewLogger())
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), testRelease(t)))
	assert.Equal(t, "zip\n816**\n819**\n", uploader.objects["releases/census/run-1/release.csv"])
	assert.Contains(t, uploader.objects["releases/census/run-1/report.json"], `"records": 2`)
	assert.Equal(t, "text/csv", uploader.types["releases/census/run-1/release.csv"])
	assert.Equal(t, "application/json", uploader.types["releases/census/run-1/report.json"])
}

func TestWriteFailures(t *testing.T) {
	s, err := NewSink(&Config{Bucket: "releases"}, testutil.NewLogger())
	require.NoError(t, err)
	err = s.Write(context.Background(), testRelease(t))
	assert.True(t, stderrors.Is(err, errors.ErrStorageWriteFailed))

	s, err = NewSinkWithUploader(&Config{Bucket: "releases"}, &fakeUploader{err: stderrors.New("access denied")}, testutil.NewLogger())
	require.NoError(t, err)
	err = s.Write(context.Background(), testRelease(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://releases/run-1/release.csv")
}

func TestKey(t *testing.T) {
	s, err := NewSink(&Config{Bucket: "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "r/report.json", s.Key("r", "report.json"))
	s.config.Prefix = "a/b"
	assert.Equal(t, "a/b/r/report.json", s.Key("r", "report.json"))
}
