// Package objectstore keeps user-uploaded images (post images, channel
// profile and banner images) in an S3-compatible bucket.
//
// Images arrive from the browser as base64 data URLs. Each upload is stored
// under "<folder>/<uuid>" with the decoded content type, and the public URL
// of the object is what the rest of the system persists. The public id of an
// object is the last path segment of that URL with any extension stripped,
// so an object can be destroyed from nothing but its URL and folder.
package objectstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/sakif/tubeclone/internal/apperror"
)

// Folders used by the services.
const (
	FolderPostImages    = "post_images"
	FolderChannelImages = "channel_profile_images"
)

// MaxImageBytes bounds a single decoded upload.
const MaxImageBytes = 10 << 20

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Endpoint  string // e.g. an R2 or MinIO endpoint; empty means AWS
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicBaseURL prefixes object keys to form public URLs. Defaults to
	// "<Endpoint>/<Bucket>".
	PublicBaseURL string
}

// Store uploads and destroys images.
type Store struct {
	client  s3API
	bucket  string
	baseURL string
}

// New builds a Store backed by S3. A custom endpoint switches on path-style
// addressing, which R2 and MinIO require.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: loading aws config: %w", err)
	}

	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		if endpoint == "" {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		} else {
			baseURL = endpoint + "/" + cfg.Bucket
		}
	}

	return newStore(client, cfg.Bucket, baseURL), nil
}

func newStore(client s3API, bucket, baseURL string) *Store {
	return &Store{client: client, bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Upload stores a base64 data URL under folder and returns its public URL.
func (s *Store) Upload(ctx context.Context, folder, dataURL string) (string, error) {
	contentType, body, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	key := folder + "/" + uuid.NewString()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("objectstore: uploading %s: %w", key, apperror.Upstream("objectstore", 0, err.Error()))
	}

	return s.baseURL + "/" + key, nil
}

// Destroy deletes the object with publicID in folder. Deleting a missing
// object succeeds.
func (s *Store) Destroy(ctx context.Context, folder, publicID string) error {
	if publicID == "" {
		return nil
	}
	key := folder + "/" + publicID
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: deleting %s: %w", key, apperror.Upstream("objectstore", 0, err.Error()))
	}
	return nil
}

// DestroyURL destroys the object a public URL points at. URLs this store did
// not hand out (a Google avatar, say) are left alone.
func (s *Store) DestroyURL(ctx context.Context, folder, rawURL string) error {
	if !strings.HasPrefix(rawURL, s.baseURL+"/") {
		return nil
	}
	return s.Destroy(ctx, folder, PublicID(rawURL))
}

// PublicID is the trailing path segment of rawURL without its extension.
func PublicID(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// ValidateDataURL reports whether dataURL is an image Upload would accept.
func ValidateDataURL(dataURL string) error {
	_, _, err := decodeDataURL(dataURL)
	return err
}

// decodeDataURL splits "data:<type>;base64,<payload>".
func decodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, apperror.ValidationFailed("image", "image must be a base64 data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, apperror.ValidationFailed("image", "image must be a base64 data URL")
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, apperror.ValidationFailed("image", "image data must be base64 encoded")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", nil, apperror.ValidationFailed("image", "only image uploads are accepted")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes {
		return "", nil, apperror.ValidationFailed("image", "image is too large")
	}

	body, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, apperror.ValidationFailed("image", "image data is not valid base64")
	}
	return contentType, body, nil
}
