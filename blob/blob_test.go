package blob

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRef(t *testing.T) {
	ref := NewRef("house front.jpg")
	assert.True(t, strings.HasSuffix(ref, "-house_front.jpg"), ref)
	assert.True(t, ValidRef(ref))

	assert.True(t, strings.HasSuffix(NewRef("../../etc/passwd"), "-passwd"))
	assert.True(t, strings.HasSuffix(NewRef(`C:\photos\a.png`), "-a.png"))
	assert.True(t, strings.HasSuffix(NewRef(""), "-file"))
	assert.True(t, strings.HasSuffix(NewRef(".."), "-file"))

	assert.NotEqual(t, NewRef("a.jpg"), NewRef("a.jpg"))
}

func TestValidRef(t *testing.T) {
	assert.False(t, ValidRef(""))
	assert.False(t, ValidRef("a.jpg"))
	assert.False(t, ValidRef("notaksuid-a.jpg"))
	assert.False(t, ValidRef("../x"))
}

func TestDiskStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewDiskStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	ref, err := s.Save(context.Background(), "flat.png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(got))

	require.NoError(t, s.Delete(context.Background(), ref))
	_, err = os.Stat(filepath.Join(dir, ref))
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, s.Delete(context.Background(), ref))
	assert.Error(t, s.Delete(context.Background(), "../outside"))
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestDiskStore_SaveFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDiskStore(dir)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "flat.png", brokenReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiskStore_CancelledContext(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, "a.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []string
	putErr  error
	presign *s3.GetObjectInput
	expires time.Duration
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.presign = in
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket.test/" + aws.ToString(in.Key) + "?sig", Method: http.MethodGet}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{}
	s := &S3Store{bucket: "photos", client: fake, presign: fake}

	ref, err := s.Save(context.Background(), "a.jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "photos", aws.ToString(fake.puts[0].Bucket))
	assert.Equal(t, ref, aws.ToString(fake.puts[0].Key))

	url, err := s.PresignGet(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.test/"+ref+"?sig", url)
	assert.Equal(t, PresignExpiry, fake.expires)
	assert.Equal(t, "photos", aws.ToString(fake.presign.Bucket))

	require.NoError(t, s.Delete(context.Background(), ref))
	assert.Equal(t, []string{ref}, fake.deletes)

	fake.putErr = errors.New("denied")
	_, err = s.Save(context.Background(), "a.jpg", bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestNewS3Store(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3Config{
		Bucket:       "photos",
		Region:       "us-east-1",
		BaseEndpoint: "http://localhost:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
	})
	require.NoError(t, err)

	url, err := s.PresignGet(context.Background(), "2Abc-a.jpg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/photos/2Abc-a.jpg?"), url)
	assert.Contains(t, url, "X-Amz-Expires=900")
}
