package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "posts/abc/cover.jpg", strings.NewReader("img")))

	rc, err := s.Get(ctx, "posts/abc/cover.jpg")
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "img", string(got))

	require.NoError(t, s.Delete(ctx, "posts/abc/cover.jpg"))
	_, err = s.Get(ctx, "posts/abc/cover.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, "posts/abc/cover.jpg"))
}

func TestLocalStorage_RejectsEscapes(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Save(context.Background(), "../outside.txt", strings.NewReader("x"))
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = raw
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	raw, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(raw))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage_UsesPrefixAndMapsNotFound(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newS3Storage(fake, "bucket", "blog")

	// a plain io.Reader gets buffered
	require.NoError(t, s.Save(ctx, "posts/1/cover.jpg", io.MultiReader(strings.NewReader("im"), strings.NewReader("g"))))
	assert.Equal(t, []byte("img"), fake.objects["blog/posts/1/cover.jpg"])

	rc, err := s.Get(ctx, "posts/1/cover.jpg")
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "img", string(got))

	require.NoError(t, s.Delete(ctx, "posts/1/cover.jpg"))
	_, err = s.Get(ctx, "posts/1/cover.jpg")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = NewS3Storage(aws.Config{}, "", "")
	assert.Error(t, err)
}

func TestImageProcessor_Fit(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2400, 600))
	for x := 0; x < 2400; x++ {
		src.Set(x, 10, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := NewImageProcessor().Fit(&buf, 1200, 630)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 300, cfg.Height)

	_, err = NewImageProcessor().Fit(strings.NewReader("not an image"), 1200, 630)
	assert.ErrorIs(t, err, ErrInvalidImage)
}
