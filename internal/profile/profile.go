/*
Package profile decodes provisioning profiles (.mobileprovision) and reads
values out of them.

A profile is a CMS-signed plist. Decoding writes the plaintext plist to a
temporary file that a plist.Reader can then query.
*/
package profile

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.mozilla.org/pkcs7"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/plist"
	"github.com/oarkflow/otadrop/internal/runner"
)

// Keys read from decoded profiles.
const (
	KeyName           = ":Name"
	KeyAPSEnvironment = ":Entitlements:aps-environment"
)

// Production is the aps-environment value of distribution builds.
const Production = "production"

// Decoder converts a signed profile at src into a plaintext plist at dst.
type Decoder interface {
	Decode(ctx context.Context, src, dst string) error
}

// Security decodes profiles with `security cms -D`.
type Security struct {
	Path   string
	Runner runner.Runner
	Fs     afero.Fs
}

// NewSecurity creates a decoder backed by the security tool. An empty path
// uses "security" from PATH.
func NewSecurity(r runner.Runner, fs afero.Fs, path string) *Security {
	if path == "" {
		path = "security"
	}
	return &Security{Path: path, Runner: r, Fs: fs}
}

// Decode implements Decoder.
func (s *Security) Decode(ctx context.Context, src, dst string) error {
	var buf bytes.Buffer
	if err := s.Runner.Run(ctx, &buf, s.Path, "cms", "-D", "-i", src); err != nil {
		return err
	}
	return afero.WriteFile(s.Fs, dst, buf.Bytes(), 0o600)
}

// PKCS7 decodes profiles in-process with go.mozilla.org/pkcs7. The signature
// is not verified; only the embedded content is extracted.
type PKCS7 struct {
	Fs afero.Fs
}

// NewPKCS7 creates a library-backed decoder.
func NewPKCS7(fs afero.Fs) *PKCS7 {
	return &PKCS7{Fs: fs}
}

// Decode implements Decoder.
func (p *PKCS7) Decode(_ context.Context, src, dst string) error {
	data, err := afero.ReadFile(p.Fs, src)
	if err != nil {
		return err
	}

	p7, err := pkcs7.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse PKCS#7 container: %w", err)
	}

	return afero.WriteFile(p.Fs, dst, p7.Content, 0o600)
}

// Profiles reads values from provisioning profiles.
type Profiles struct {
	Decoder Decoder
	Reader  plist.Reader
	// TmpDir receives the decoded plist.
	TmpDir string
}

// New creates a profile reader that decodes into tmpDir.
func New(decoder Decoder, reader plist.Reader, tmpDir string) *Profiles {
	return &Profiles{
		Decoder: decoder,
		Reader:  reader,
		TmpDir:  tmpDir,
	}
}

// Value decodes the profile at src and returns the value at key. ok is false
// when the profile could not be decoded; a missing key is ("", true).
func (p *Profiles) Value(ctx context.Context, src, key string) (value string, ok bool) {
	tmp := filepath.Join(p.TmpDir, "tmp.plist")
	if err := p.Decoder.Decode(ctx, src, tmp); err != nil {
		return "", false
	}
	return p.Reader.Value(ctx, tmp, key), true
}

// RequireProduction fails unless the profile at src grants the production
// push environment.
func (p *Profiles) RequireProduction(ctx context.Context, src string) error {
	if env, ok := p.Value(ctx, src, KeyAPSEnvironment); ok && env == Production {
		return nil
	}
	return failure.New(failure.Policy, "Not a production environment app.").
		WithHint("Make sure you build with an 'iOS Distribution' code-signing identity")
}
