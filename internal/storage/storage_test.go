package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func newLocalStore(t *testing.T, maxBytes int64) (*AttachmentStore, string) {
	t.Helper()
	root := t.TempDir()
	disk, err := NewLocalDisk(root, "http://localhost:8080/storage/")
	require.NoError(t, err)
	return NewAttachmentStore(disk, maxBytes), root
}

func TestAttachmentStoreWritesUnderTicketsPrefix(t *testing.T) {
	store, root := newLocalStore(t, 0)
	payload := []byte("%PDF-1.4 test")

	key, err := store.Store(context.Background(), &Upload{
		FileName:    "Invoice.PDF",
		ContentType: "application/pdf",
		Size:        int64(len(payload)),
		Content:     bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, AttachmentPrefix))
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	written, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, payload, written)

	url := store.URL(&key)
	require.NotNil(t, url)
	assert.Equal(t, "http://localhost:8080/storage/"+key, *url)
	assert.Nil(t, store.URL(nil))

	require.NoError(t, store.Remove(context.Background(), key))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Remove(context.Background(), key), "missing files are ignored")
}

func TestAttachmentStoreValidate(t *testing.T) {
	store, _ := newLocalStore(t, 1024)

	cases := []struct {
		name   string
		upload Upload
		valid  bool
	}{
		{"png", Upload{FileName: "shot.png", ContentType: "image/png", Size: 10}, true},
		{"docx octet stream", Upload{FileName: "a.docx", ContentType: "application/octet-stream", Size: 10}, true},
		{"jpeg with params", Upload{FileName: "a.jpeg", ContentType: "image/jpeg; charset=binary", Size: 10}, true},
		{"executable", Upload{FileName: "run.exe", ContentType: "application/octet-stream", Size: 10}, false},
		{"no extension", Upload{FileName: "README", Size: 10}, false},
		{"mismatched type", Upload{FileName: "a.png", ContentType: "text/html", Size: 10}, false},
		{"too large", Upload{FileName: "a.pdf", ContentType: "application/pdf", Size: 1025}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upload := tc.upload
			err := store.Validate(&upload)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationFailed))
			domainErr := apperrors.ToDomainError(err)
			assert.Contains(t, domainErr.Details, "attachment")
		})
	}
}

func TestLocalDiskRejectsEscapingKeys(t *testing.T) {
	disk, err := NewLocalDisk(t.TempDir(), "/storage")
	require.NoError(t, err)

	err = disk.Put(context.Background(), "../outside.txt", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, disk.Delete(context.Background(), ""), ErrInvalidKey)
}

type fakeUploader struct {
	inputs []*s3manager.UploadInput
	bodies []string
	err    error
}

func (f *fakeUploader) Upload(input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), input, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, input *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(input.Body)
	f.inputs = append(f.inputs, input)
	f.bodies = append(f.bodies, string(body))
	return &s3manager.UploadOutput{}, nil
}

type fakeS3 struct {
	s3iface.S3API
	deleted []string
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, input *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.StringValue(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3DiskPutDeleteAndURL(t *testing.T) {
	uploader := &fakeUploader{}
	client := &fakeS3{}
	disk := newS3Disk(S3Options{Bucket: "attachments", Region: "eu-west-1"}, client, uploader)

	require.NoError(t, disk.Put(context.Background(), "tickets/a.png", strings.NewReader("img"), 3, "image/png"))
	require.Len(t, uploader.inputs, 1)
	assert.Equal(t, "attachments", aws.StringValue(uploader.inputs[0].Bucket))
	assert.Equal(t, "tickets/a.png", aws.StringValue(uploader.inputs[0].Key))
	assert.Equal(t, "image/png", aws.StringValue(uploader.inputs[0].ContentType))
	assert.Equal(t, "img", uploader.bodies[0])

	require.NoError(t, disk.Delete(context.Background(), "tickets/a.png"))
	assert.Equal(t, []string{"tickets/a.png"}, client.deleted)

	assert.Equal(t, "https://attachments.s3.eu-west-1.amazonaws.com/tickets/a.png", disk.URL("tickets/a.png"))

	custom := newS3Disk(S3Options{Bucket: "b", Endpoint: "http://minio:9000"}, client, uploader)
	assert.Equal(t, "http://minio:9000/b/tickets/a.png", custom.URL("tickets/a.png"))
}

func TestAttachmentStoreWrapsDiskFailures(t *testing.T) {
	uploader := &fakeUploader{err: assert.AnError}
	store := NewAttachmentStore(newS3Disk(S3Options{Bucket: "b", Region: "us-east-1"}, &fakeS3{}, uploader), 0)

	_, err := store.Store(context.Background(), &Upload{
		FileName: "a.png", ContentType: "image/png", Size: 3, Content: strings.NewReader("img"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStorage))
	assert.ErrorIs(t, err, assert.AnError)
}
