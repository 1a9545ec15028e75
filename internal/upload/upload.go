/*
Package upload puts build artifacts into remote storage and returns public
links to them.

Two backends are available: the dropbox_uploader.sh client and any
gocloud.dev blob bucket.
*/
package upload

import (
	"context"
	"path/filepath"
	"strings"
)

const (
	dropboxHost = "www.dropbox.com"
	directHost  = "dl.dropboxusercontent.com"
)

// Uploader uploads files and shares them.
type Uploader interface {
	// Upload copies the local file src to the remote path dst.
	Upload(ctx context.Context, src, dst string) error
	// Share returns a public URL serving the raw bytes of the remote path.
	Share(ctx context.Context, path string) (string, error)
}

// DirectLink rewrites a Dropbox share link so it serves the file contents
// instead of a preview page.
func DirectLink(link string) string {
	link = strings.Replace(link, "?dl=0", "", 1)
	return strings.Replace(link, dropboxHost, directHost, 1)
}

// ContentType returns the content type stored with an uploaded file.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".plist":
		return "application/xml"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
