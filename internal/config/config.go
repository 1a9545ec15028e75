/*
Package config provides configuration loading and validation for otadrop.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/otadrop/internal/checksum"
	"github.com/oarkflow/otadrop/internal/packaging"
	"github.com/oarkflow/otadrop/internal/plist"
	"github.com/oarkflow/otadrop/internal/signing"
	"github.com/oarkflow/otadrop/internal/upload"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = ".otadrop.yaml"

// DefaultDropboxRoot is the remote folder builds are uploaded under.
const DefaultDropboxRoot = "/AdHoc Builds"

// Backend names.
const (
	PlistBuddy = "plistbuddy"
	Native     = "native"
	Security   = "security"
	PKCS7      = "pkcs7"
	Dropbox    = "dropbox"
	Blob       = "blob"
)

// Config represents the complete otadrop configuration
type Config struct {
	// DropboxRoot is the remote folder builds are uploaded under
	DropboxRoot string `yaml:"dropbox_root,omitempty"`

	// SigningIdentity skips the keychain search when set
	SigningIdentity string `yaml:"signing_identity,omitempty"`

	// MobileProvision skips the provisioning profile search when set
	MobileProvision string `yaml:"mobile_provision,omitempty"`

	// TemplateDir holds manifest.plist and index.html
	TemplateDir string `yaml:"template_dir,omitempty"`

	// ProfilesDir is searched for installed provisioning profiles
	ProfilesDir string `yaml:"profiles_dir,omitempty"`

	// Checksum is the digest shown on the install page
	Checksum checksum.Algorithm `yaml:"checksum,omitempty"`

	// External tools
	Tools Tools `yaml:"tools,omitempty"`

	// Plist reader
	Plist Backend `yaml:"plist,omitempty"`

	// Provisioning profile decoder
	Profile Backend `yaml:"profile,omitempty"`

	// Remote storage
	Storage Storage `yaml:"storage,omitempty"`

	// Commands run around packaging and upload
	Hooks Hooks `yaml:"hooks,omitempty"`
}

// Hooks holds lifecycle hooks
type Hooks struct {
	// Before hooks run once signing info is resolved, before packaging
	Before []Hook `yaml:"before,omitempty"`

	// After hooks run once the install page is published
	After []Hook `yaml:"after,omitempty"`
}

// Hook represents a single hook command
type Hook struct {
	// Command to run with the user's shell. Template placeholders are
	// substituted first, each value shell-quoted.
	Cmd string `yaml:"cmd"`

	// FailFast stops the run on error
	FailFast bool `yaml:"fail_fast,omitempty"`
}

// Tools holds paths to external tools
type Tools struct {
	PlistBuddy              string `yaml:"plistbuddy,omitempty"`
	Security                string `yaml:"security,omitempty"`
	Patch                   string `yaml:"patch,omitempty"`
	PackageApplication      string `yaml:"package_application,omitempty"`
	PackageApplicationPatch string `yaml:"package_application_patch,omitempty"`
}

// Backend selects an implementation
type Backend struct {
	Backend string `yaml:"backend,omitempty"`
}

// Storage configures where builds are uploaded
type Storage struct {
	// Backend is dropbox or blob
	Backend string `yaml:"backend,omitempty"`

	// DropboxUploader is the dropbox_uploader.sh script
	DropboxUploader string `yaml:"dropbox_uploader,omitempty"`

	// DropboxConfig is the credential file written by the uploader
	DropboxConfig string `yaml:"dropbox_config,omitempty"`

	// BucketURL is a gocloud.dev bucket URL (s3://, file://, mem://)
	BucketURL string `yaml:"bucket_url,omitempty"`

	// PublicURL is the base URL objects in the bucket are served from
	PublicURL string `yaml:"public_url,omitempty"`
}

// Defaults returns the built-in configuration. home is the user's home
// directory and dir the directory holding the otadrop executable.
func Defaults(home, dir string) *Config {
	return &Config{
		DropboxRoot: DefaultDropboxRoot,
		TemplateDir: filepath.Join(dir, "templates"),
		ProfilesDir: filepath.Join(home, signing.DefaultProfilesDir),
		Checksum:    checksum.AlgorithmSHA256,
		Tools: Tools{
			PlistBuddy:              plist.DefaultPlistBuddy,
			Security:                "security",
			Patch:                   "patch",
			PackageApplication:      packaging.DefaultPackageApplication,
			PackageApplicationPatch: filepath.Join(dir, "PackageApplication.patch"),
		},
		Plist:   Backend{Backend: PlistBuddy},
		Profile: Backend{Backend: Security},
		Storage: Storage{
			Backend:         Dropbox,
			DropboxUploader: filepath.Join(dir, "externals", "Dropbox-Uploader", "dropbox_uploader.sh"),
			DropboxConfig:   filepath.Join(home, upload.DefaultDropboxConfig),
		},
	}
}

// Load loads configuration from a file
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.Expand(string(data), expandEnv))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// expandEnv resolves set environment variables and leaves anything else in
// place for template substitution.
func expandEnv(name string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	if name == "$" {
		return "$$"
	}
	return "${" + name + "}"
}

// Merge fills fields left empty in c from defaults.
func (c *Config) Merge(defaults *Config) error {
	if err := mergo.Merge(c, defaults); err != nil {
		return fmt.Errorf("failed to merge defaults: %w", err)
	}
	return nil
}

// Override replaces fields in c with the non-empty fields of o.
func (c *Config) Override(o *Config) error {
	if err := mergo.Merge(c, o, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to apply overrides: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DropboxRoot == "" {
		return fmt.Errorf("dropbox_root is required")
	}

	if err := checksum.Validate(c.Checksum); err != nil {
		return fmt.Errorf("checksum: %w", err)
	}

	switch c.Plist.Backend {
	case PlistBuddy, Native:
	default:
		return fmt.Errorf("unknown plist backend: %s", c.Plist.Backend)
	}

	switch c.Profile.Backend {
	case Security, PKCS7:
	default:
		return fmt.Errorf("unknown profile backend: %s", c.Profile.Backend)
	}

	switch c.Storage.Backend {
	case Dropbox:
	case Blob:
		if c.Storage.BucketURL == "" {
			return fmt.Errorf("storage.bucket_url is required for the blob backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	return nil
}

// DefaultTemplate returns the default configuration template
func DefaultTemplate() string {
	return `# otadrop configuration file
# Every setting is optional. Command line flags take precedence.

# Remote folder builds are uploaded under
dropbox_root: /AdHoc Builds

# Skip the keychain and provisioning profile searches
# signing_identity: "iPhone Distribution: Acme Corp (XYZ9876543)"
# mobile_provision: ~/Library/MobileDevice/Provisioning Profiles/profile.mobileprovision

# Directory holding manifest.plist and index.html
# template_dir: ./templates

# Digest shown on the install page: md5, sha1, sha256 or sha512
checksum: sha256

# External tools
tools:
  plistbuddy: /usr/libexec/PlistBuddy
  security: security
  patch: patch
  # package_application: /Applications/Xcode.app/Contents/Developer/Platforms/iPhoneOS.platform/Developer/usr/bin/PackageApplication
  # package_application_patch: ./PackageApplication.patch

# plistbuddy or native
plist:
  backend: plistbuddy

# security or pkcs7
profile:
  backend: security

storage:
  # dropbox or blob
  backend: dropbox
  # dropbox_uploader: ./externals/Dropbox-Uploader/dropbox_uploader.sh
  # dropbox_config: ${HOME}/.dropbox_uploader

  # Any gocloud.dev bucket URL
  # bucket_url: s3://builds?region=us-east-1
  # public_url: https://builds.example.com

# Commands run around packaging and upload. $bundle_identifier,
# $bundle_version, $bundle_name and, for after hooks, $install_url are
# substituted. Values are shell-quoted, so do not wrap them in quotes.
# hooks:
#   before:
#     - cmd: ./scripts/bump-build-number.sh $bundle_version
#   after:
#     - cmd: echo $bundle_name $bundle_version $install_url | pbcopy
#       fail_fast: false
`
}
