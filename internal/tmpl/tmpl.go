/*
Package tmpl provides template processing for otadrop.

Templates use $name and ${name} placeholders. Placeholders with no value are
left in the output unchanged and $$ produces a literal $.
*/
package tmpl

import (
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// Placeholder names.
const (
	BundleIdentifier  = "bundle_identifier"
	BundleVersion     = "bundle_version"
	BundleName        = "bundle_name"
	IPAURL            = "ipa_url"
	IconURL           = "icon_url"
	IPASize           = "ipa_size"
	IPAChecksum       = "ipa_checksum"
	ChecksumAlgorithm = "checksum_algorithm"
	ManifestURL       = "manifest_url"
	ManifestURLQuoted = "manifest_url_quoted"
	InstallURL        = "install_url"
)

// Template file names.
const (
	Manifest = "manifest.plist"
	Index    = "index.html"
)

//go:embed templates/*
var defaults embed.FS

var placeholderRe = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\})`)

// Context provides template context and rendering
type Context struct {
	data map[string]string
}

// New creates a new template context
func New() *Context {
	return &Context{data: make(map[string]string)}
}

// Set sets a value in the context
func (c *Context) Set(key, value string) {
	c.data[key] = value
}

// Get gets a value from the context
func (c *Context) Get(key string) string {
	return c.data[key]
}

// Apply substitutes placeholders in text.
func (c *Context) Apply(text string) string {
	return c.ApplyFunc(text, nil)
}

// ApplyFunc substitutes placeholders in text, passing each value through
// quote when it is not nil.
func (c *Context) ApplyFunc(text string, quote func(string) string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		if sub[1] != "" {
			return "$"
		}
		name := sub[2]
		if name == "" {
			name = sub[3]
		}
		if v, ok := c.data[name]; ok {
			if quote != nil {
				return quote(v)
			}
			return v
		}
		return m
	})
}

// Data returns a copy of the template data
func (c *Context) Data() map[string]string {
	result := make(map[string]string, len(c.data))
	for k, v := range c.data {
		result[k] = v
	}
	return result
}

// Loader reads templates from a directory, falling back to the built-in
// copies for files the directory does not have.
type Loader struct {
	Fs  afero.Fs
	Dir string
}

// Read returns the contents of the named template.
func (l *Loader) Read(name string) (string, error) {
	if l.Dir != "" && l.Fs != nil {
		path := filepath.Join(l.Dir, name)
		if ok, _ := afero.Exists(l.Fs, path); ok {
			data, err := afero.ReadFile(l.Fs, path)
			if err != nil {
				return "", fmt.Errorf("failed to read template %s: %w", path, err)
			}
			return string(data), nil
		}
	}

	data, err := fs.ReadFile(defaults, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("unknown template %s: %w", name, err)
	}
	return string(data), nil
}

// ApplyFile renders the named template with c.
func (c *Context) ApplyFile(l *Loader, name string) (string, error) {
	text, err := l.Read(name)
	if err != nil {
		return "", err
	}
	return c.Apply(text), nil
}

// MiB formats a byte count as mebibytes with one decimal place.
func MiB(bytes int64) string {
	return fmt.Sprintf("%.1f MiB", float64(bytes)/1048576)
}

// QuoteAll percent-encodes s, leaving only letters, digits and "-._" as is.
func QuoteAll(s string) string {
	return strings.NewReplacer("+", "%20", "~", "%7E").Replace(url.QueryEscape(s))
}
