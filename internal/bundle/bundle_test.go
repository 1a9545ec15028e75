package bundle

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/plist"
)

const dir = "/build/Tester.app"

func infoPlist(id, version, name string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>%s</string>
	<key>CFBundleVersion</key>
	<string>%s</string>
	<key>CFBundleDisplayName</key>
	<string>%s</string>
	<key>CFBundleIcons</key>
	<dict>
		<key>CFBundlePrimaryIcon</key>
		<dict>
			<key>CFBundleIconFiles</key>
			<array>
				<string>AppIcon60x60</string>
			</array>
		</dict>
	</dict>
</dict>
</plist>
`, id, version, name)
}

func newBundle(t *testing.T, plistData string, files ...string) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, InfoPlist), []byte(plistData), 0o644))
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, f), []byte("x"), 0o644))
	}
	return fs
}

func TestCheck(t *testing.T) {
	fs := newBundle(t, infoPlist("com.acme.Tester", "3.4", "Tester"), EmbeddedMobileProvision)
	assert.NoError(t, Check(fs, dir))

	err := Check(fs, "/build/Missing.app")
	assert.EqualError(t, err, "Bundle not a directory.")

	fs = newBundle(t, infoPlist("com.acme.Tester", "3.4", "Tester"))
	err = Check(fs, dir)
	assert.EqualError(t, err, "Bundle embedded.mobileprovision not a file.")
}

func TestRead(t *testing.T) {
	fs := newBundle(t, infoPlist("com.acme.Tester", "3.4", "Tester"), "AppIcon60x60@3x.png", "AppIcon60x60@2x.png")

	info, err := Read(context.Background(), fs, plist.NewNative(fs), dir)
	require.NoError(t, err)
	assert.Equal(t, &Info{
		Identifier:  "com.acme.Tester",
		Version:     "3.4",
		DisplayName: "Tester",
		Icon:        filepath.Join(dir, "AppIcon60x60@3x.png"),
	}, info)
	assert.NoError(t, info.RequireIcon())
}

func TestReadRejectsBadMetadata(t *testing.T) {
	tests := []struct {
		name              string
		id, version, disp string
		message           string
	}{
		{"identifier", "com.acme.Te ster", "3.4", "Tester", "Bundle Identifier does not match expected pattern."},
		{"version", "com.acme.Tester", "3.4b", "Tester", "Bundle Version does not match expected pattern."},
		{"name", "com.acme.Tester", "3.4", "", "Bundle Name does not match expected pattern."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newBundle(t, infoPlist(tt.id, tt.version, tt.disp))
			_, err := Read(context.Background(), fs, plist.NewNative(fs), dir)
			assert.Equal(t, failure.Pattern, failure.KindOf(err))
			assert.EqualError(t, err, tt.message)
		})
	}
}

func TestRequireIcon(t *testing.T) {
	err := (&Info{}).RequireIcon()
	assert.Equal(t, failure.Precondition, failure.KindOf(err))
}
