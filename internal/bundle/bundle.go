// Package bundle reads metadata from a built .app bundle.
package bundle

import (
	"context"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/icon"
	"github.com/oarkflow/otadrop/internal/plist"
	"github.com/oarkflow/otadrop/internal/require"
)

// File names inside a bundle.
const (
	InfoPlist               = "Info.plist"
	EmbeddedMobileProvision = "embedded.mobileprovision"
)

// Info.plist keys.
const (
	KeyIdentifier  = ":CFBundleIdentifier"
	KeyVersion     = ":CFBundleVersion"
	KeyDisplayName = ":CFBundleDisplayName"
)

// Info describes a bundle.
type Info struct {
	Identifier  string
	Version     string
	DisplayName string
	// Icon is the path of the largest icon file, empty if there is none.
	Icon string
}

// Check verifies dir looks like a signed bundle.
func Check(fs afero.Fs, dir string) error {
	if err := require.Dir(fs, dir, "Bundle"); err != nil {
		return err
	}
	if err := require.File(fs, filepath.Join(dir, InfoPlist), "Bundle Info.plist"); err != nil {
		return err
	}
	return require.File(fs, filepath.Join(dir, EmbeddedMobileProvision), "Bundle embedded.mobileprovision")
}

// Read extracts and validates the bundle metadata.
func Read(ctx context.Context, fs afero.Fs, reader plist.Reader, dir string) (*Info, error) {
	path := filepath.Join(dir, InfoPlist)
	info := &Info{}

	info.Identifier = reader.Value(ctx, path, KeyIdentifier)
	if err := require.Match(require.BundleIdentifier, info.Identifier, "Bundle Identifier"); err != nil {
		return nil, err
	}

	info.Version = reader.Value(ctx, path, KeyVersion)
	if err := require.Match(require.BundleVersion, info.Version, "Bundle Version"); err != nil {
		return nil, err
	}

	info.DisplayName = reader.Value(ctx, path, KeyDisplayName)
	if err := require.Match(require.BundleName, info.DisplayName, "Bundle Name"); err != nil {
		return nil, err
	}

	info.Icon = icon.Find(ctx, fs, reader, dir)
	return info, nil
}

// RequireIcon fails when no icon was found.
func (i *Info) RequireIcon() error {
	if i.Icon == "" {
		return failure.New(failure.Precondition, "Bundle icon not found.").
			WithHint("Add an app icon set to the asset catalog")
	}
	return nil
}
