package upload

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"gocloud.dev/blob"

	// Supported bucket URL schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/oarkflow/otadrop/internal/failure"
)

// SignedURLExpiry is how long links from a bucket without a public URL stay
// valid.
const SignedURLExpiry = 7 * 24 * time.Hour

// Blob uploads to a gocloud.dev bucket.
type Blob struct {
	Bucket *blob.Bucket
	Fs     afero.Fs
	// PublicURL is prefixed to keys when sharing. Signed URLs are used when
	// it is empty.
	PublicURL string
	Logger    *log.Logger
}

// OpenBlob opens the bucket at bucketURL, e.g. s3://builds?region=us-east-1
// or file:///srv/builds.
func OpenBlob(ctx context.Context, fs afero.Fs, bucketURL, publicURL string) (*Blob, error) {
	if bucketURL == "" {
		return nil, failure.New(failure.Precondition, "Storage bucket URL not set.").
			WithHint("Set storage.bucket_url in the config file")
	}
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, failure.Wrap(failure.Precondition, "Failed to open storage bucket.", err)
	}
	return &Blob{Bucket: bucket, Fs: fs, PublicURL: publicURL}, nil
}

// Close closes the bucket.
func (b *Blob) Close() error {
	return b.Bucket.Close()
}

// Upload implements Uploader.
func (b *Blob) Upload(ctx context.Context, src, dst string) error {
	key := Key(dst)
	if b.Logger != nil {
		b.Logger.Debug("Uploading to bucket", "src", src, "key", key)
	}

	f, err := b.Fs.Open(src)
	if err != nil {
		return failure.Wrap(failure.Tool, "Upload failed.", err)
	}
	defer f.Close()

	// Cancelling the writer's context before Close discards the write and
	// keeps any existing object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := b.Bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: ContentType(key)})
	if err != nil {
		return failure.Wrap(failure.Tool, "Upload failed.", err)
	}
	if _, err = io.Copy(w, f); err != nil {
		cancel()
		_ = w.Close()
		return failure.Wrap(failure.Tool, "Upload failed.", err)
	}
	if err = w.Close(); err != nil {
		return failure.Wrap(failure.Tool, "Upload failed.", err)
	}
	return nil
}

// Share implements Uploader.
func (b *Blob) Share(ctx context.Context, path string) (string, error) {
	key := Key(path)

	ok, err := b.Bucket.Exists(ctx, key)
	if err != nil {
		return "", failure.Wrap(failure.Tool, "Share failed.", err)
	}
	if !ok {
		return "", failure.New(failure.Tool, "Share failed.", fmt.Sprintf("key = %s", key), "object does not exist")
	}

	if b.PublicURL != "" {
		return strings.TrimSuffix(b.PublicURL, "/") + "/" + escapeKey(key), nil
	}

	link, err := b.Bucket.SignedURL(ctx, key, &blob.SignedURLOptions{Expiry: SignedURLExpiry})
	if err != nil {
		return "", failure.Wrap(failure.Tool, "Share failed.", err)
	}
	return link, nil
}

// Key converts a remote path into a bucket key.
func Key(path string) string {
	return strings.TrimLeft(path, "/")
}

// escapeKey percent-encodes each segment of key.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
