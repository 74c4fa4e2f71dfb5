package objectstore

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sakif/tubeclone/internal/apperror"
)

type fakeS3 struct {
	puts    map[string][]byte
	types   map[string]string
	deletes []string
	fail    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{puts: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	b, _ := io.ReadAll(in.Body)
	f.puts[*in.Key] = b
	f.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.deletes = append(f.deletes, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func pngDataURL(payload string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}

func TestUploadThenDestroyURL(t *testing.T) {
	fake := newFakeS3()
	store := newStore(fake, "media", "https://cdn.example.com/media/")
	ctx := context.Background()

	u, err := store.Upload(ctx, FolderPostImages, pngDataURL("fake-png"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasPrefix(u, "https://cdn.example.com/media/post_images/") {
		t.Fatalf("Upload() url = %q", u)
	}

	key := strings.TrimPrefix(u, "https://cdn.example.com/media/")
	if string(fake.puts[key]) != "fake-png" {
		t.Errorf("stored body = %q", fake.puts[key])
	}
	if fake.types[key] != "image/png" {
		t.Errorf("content type = %q", fake.types[key])
	}

	if err := store.DestroyURL(ctx, FolderPostImages, u); err != nil {
		t.Fatalf("DestroyURL() error = %v", err)
	}
	if len(fake.deletes) != 1 || fake.deletes[0] != key {
		t.Errorf("deletes = %v, want [%s]", fake.deletes, key)
	}
}

func TestDestroyURL_IgnoresForeignURLs(t *testing.T) {
	fake := newFakeS3()
	store := newStore(fake, "media", "https://cdn.example.com/media")

	if err := store.DestroyURL(context.Background(), FolderChannelImages, "https://lh3.googleusercontent.com/a/photo.jpg"); err != nil {
		t.Fatalf("DestroyURL() error = %v", err)
	}
	if len(fake.deletes) != 0 {
		t.Errorf("deletes = %v, want none", fake.deletes)
	}
}

func TestUpload_RejectsBadInput(t *testing.T) {
	store := newStore(newFakeS3(), "media", "https://cdn.example.com")

	tests := []struct {
		name string
		data string
	}{
		{"plain URL", "https://example.com/a.png"},
		{"no comma", "data:image/png;base64"},
		{"not base64 flagged", "data:image/png,abc"},
		{"not an image", "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hi"))},
		{"corrupt payload", "data:image/png;base64,@@@"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Upload(context.Background(), FolderPostImages, tt.data)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Upload() error = %v, want ErrValidation", err)
			}
			if err := ValidateDataURL(tt.data); !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("ValidateDataURL() error = %v, want ErrValidation", err)
			}
		})
	}

	if err := ValidateDataURL(pngDataURL("x")); err != nil {
		t.Errorf("ValidateDataURL(valid) error = %v", err)
	}
}

func TestUpload_S3FailureIsUpstream(t *testing.T) {
	fake := newFakeS3()
	fake.fail = errors.New("connection reset")
	store := newStore(fake, "media", "https://cdn.example.com")

	_, err := store.Upload(context.Background(), FolderPostImages, pngDataURL("x"))
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("Upload() error = %v, want ErrUpstream", err)
	}
}

func TestPublicID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/post_images/abc123", "abc123"},
		{"https://res.example.com/image/upload/v1/folder/xyz.jpg", "xyz"},
		{"https://cdn.example.com/a/b.c.png?x=1", "b.c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PublicID(tt.url); got != tt.want {
			t.Errorf("PublicID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
