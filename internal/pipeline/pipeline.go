/*
Package pipeline provides the publishing pipeline orchestration for otadrop.

A run validates the bundle and its environment, reads the bundle metadata,
checks the push entitlement, resolves signing information, packages the
bundle into an .ipa and publishes it with an OTA install page.
*/
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/otadrop/internal/bundle"
	"github.com/oarkflow/otadrop/internal/checksum"
	"github.com/oarkflow/otadrop/internal/config"
	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/hook"
	"github.com/oarkflow/otadrop/internal/packaging"
	"github.com/oarkflow/otadrop/internal/plist"
	"github.com/oarkflow/otadrop/internal/profile"
	"github.com/oarkflow/otadrop/internal/require"
	"github.com/oarkflow/otadrop/internal/runner"
	"github.com/oarkflow/otadrop/internal/signing"
	"github.com/oarkflow/otadrop/internal/tmpl"
	"github.com/oarkflow/otadrop/internal/upload"
)

// Remote file names under <root>/<bundle identifier>.
const (
	RemoteIcon     = "icon.png"
	RemoteManifest = tmpl.Manifest
	RemoteIndex    = tmpl.Index
)

// Options contains options for a pipeline run
type Options struct {
	// Bundle is the .app directory to publish
	Bundle string
	// CheckOnly stops after signing information is resolved
	CheckOnly bool
}

// Env is the environment shared by every step of a run.
type Env struct {
	Config *config.Config
	Logger *log.Logger
	Fs     afero.Fs
	Runner runner.Runner
	// TmpDir holds intermediate files and is removed by Close.
	TmpDir string
	// Out receives hook output. Nil discards it.
	Out io.Writer
}

// NewEnv creates an environment with a fresh temporary directory.
func NewEnv(cfg *config.Config, logger *log.Logger, fs afero.Fs, r runner.Runner) (*Env, error) {
	tmp, err := afero.TempDir(fs, "", "otadrop-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	tmp, err = filepath.Abs(tmp)
	if err != nil {
		return nil, err
	}
	return &Env{
		Config: cfg,
		Logger: logger,
		Fs:     fs,
		Runner: r,
		TmpDir: tmp,
	}, nil
}

// Close removes the temporary directory.
func (e *Env) Close() error {
	return e.Fs.RemoveAll(e.TmpDir)
}

// Pipeline publishes one bundle
type Pipeline struct {
	env       *Env
	options   Options
	reader    plist.Reader
	profiles  *profile.Profiles
	resolver  *signing.Resolver
	packager  *packaging.Packager
	templates *tmpl.Loader
	startTime time.Time

	// Uploader is opened from the storage configuration when nil.
	Uploader upload.Uploader
}

// New creates a new pipeline
func New(env *Env, opts Options) *Pipeline {
	cfg := env.Config

	var reader plist.Reader
	switch cfg.Plist.Backend {
	case config.Native:
		reader = plist.NewNative(env.Fs)
	default:
		reader = plist.NewPlistBuddy(env.Runner, cfg.Tools.PlistBuddy)
	}

	var decoder profile.Decoder
	switch cfg.Profile.Backend {
	case config.PKCS7:
		decoder = profile.NewPKCS7(env.Fs)
	default:
		decoder = profile.NewSecurity(env.Runner, env.Fs, cfg.Tools.Security)
	}
	profiles := profile.New(decoder, reader, env.TmpDir)

	return &Pipeline{
		env:      env,
		options:  opts,
		reader:   reader,
		profiles: profiles,
		resolver: &signing.Resolver{
			Runner:      env.Runner,
			Fs:          env.Fs,
			Profiles:    profiles,
			Security:    cfg.Tools.Security,
			ProfilesDir: cfg.ProfilesDir,
			Logger:      env.Logger,
		},
		packager: &packaging.Packager{
			Runner:             env.Runner,
			Fs:                 env.Fs,
			Logger:             env.Logger,
			PackageApplication: cfg.Tools.PackageApplication,
			Patch:              cfg.Tools.PackageApplicationPatch,
			PatchTool:          cfg.Tools.Patch,
			WorkDir:            env.TmpDir,
		},
		templates: &tmpl.Loader{Fs: env.Fs, Dir: cfg.TemplateDir},
		startTime: time.Now(),
	}
}

// Run executes the pipeline and returns the link to the install page. The
// link is empty in check-only mode.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	logger := p.env.Logger

	logger.Info("Preparing", "bundle", p.options.Bundle)
	err := p.validate(ctx)
	if c, ok := p.Uploader.(io.Closer); ok {
		defer c.Close()
	}
	if err != nil {
		return "", err
	}

	logger.Info("Gathering info")
	info, err := bundle.Read(ctx, p.env.Fs, p.reader, p.options.Bundle)
	if err != nil {
		return "", err
	}
	logger.Info("Bundle",
		"identifier", info.Identifier,
		"version", info.Version,
		"name", info.DisplayName,
		"icon", info.Icon,
	)
	if err := info.RequireIcon(); err != nil {
		return "", err
	}

	data := tmpl.New()
	data.Set(tmpl.BundleIdentifier, info.Identifier)
	data.Set(tmpl.BundleVersion, info.Version)
	data.Set(tmpl.BundleName, info.DisplayName)
	hooks := hook.NewRunner(p.env.Runner, data, logger)
	hooks.Out = p.env.Out

	logger.Info("Checking app")
	embedded := filepath.Join(p.options.Bundle, bundle.EmbeddedMobileProvision)
	if err := p.profiles.RequireProduction(ctx, embedded); err != nil {
		return "", err
	}

	logger.Info("Determining (re)signing info")
	sign, err := p.resolver.Resolve(ctx, info.Identifier, signing.Info{
		Identity:        p.env.Config.SigningIdentity,
		MobileProvision: p.env.Config.MobileProvision,
	})
	if err != nil {
		return "", err
	}
	logger.Info("Signing", "identity", sign.Identity, "mobile_provision", sign.MobileProvision)

	if p.options.CheckOnly {
		logger.Info("Check completed successfully")
		return "", nil
	}

	if err := hooks.RunHooks(ctx, p.env.Config.Hooks.Before); err != nil {
		return "", err
	}

	logger.Info("Packaging application")
	ipa, err := p.pack(ctx, info, sign)
	if err != nil {
		return "", err
	}

	link, err := p.publish(ctx, info, data, ipa)
	if err != nil {
		return "", err
	}

	data.Set(tmpl.InstallURL, link)
	if err := hooks.RunHooks(ctx, p.env.Config.Hooks.After); err != nil {
		return "", err
	}

	logger.Info("Published", "url", link, "duration", time.Since(p.startTime).Round(time.Second))
	return link, nil
}

// validate checks tools, storage and the bundle before any work is done.
func (p *Pipeline) validate(ctx context.Context) error {
	cfg := p.env.Config

	if p.Uploader == nil {
		u, err := p.openUploader(ctx)
		if err != nil {
			return err
		}
		p.Uploader = u
	}

	if err := bundle.Check(p.env.Fs, p.options.Bundle); err != nil {
		return err
	}

	if cfg.Plist.Backend == config.PlistBuddy {
		if err := require.Tool(p.env.Runner, cfg.Tools.PlistBuddy, "PlistBuddy"); err != nil {
			return err
		}
	}
	if cfg.Profile.Backend == config.Security || cfg.SigningIdentity == "" {
		if err := require.Tool(p.env.Runner, cfg.Tools.Security, "security tool"); err != nil {
			return err
		}
	}

	if p.options.CheckOnly {
		return nil
	}

	if err := require.File(p.env.Fs, cfg.Tools.PackageApplication, "PackageApplication", "Install Xcode or set tools.package_application"); err != nil {
		return err
	}
	if err := require.File(p.env.Fs, cfg.Tools.PackageApplicationPatch, "PackageApplication patch"); err != nil {
		return err
	}
	return require.Tool(p.env.Runner, cfg.Tools.Patch, "patch tool")
}

func (p *Pipeline) openUploader(ctx context.Context) (upload.Uploader, error) {
	s := p.env.Config.Storage
	switch s.Backend {
	case config.Blob:
		b, err := upload.OpenBlob(ctx, p.env.Fs, s.BucketURL, s.PublicURL)
		if err != nil {
			return nil, err
		}
		b.Logger = p.env.Logger
		return b, nil
	default:
		return upload.NewDropbox(p.env.Fs, p.env.Runner, s.DropboxUploader, s.DropboxConfig)
	}
}

// pack builds the .ipa and returns its path.
func (p *Pipeline) pack(ctx context.Context, info *bundle.Info, sign *signing.Info) (string, error) {
	if err := p.packager.Prepare(ctx); err != nil {
		return "", err
	}

	ipa := filepath.Join(p.env.TmpDir, "Output.ipa")
	if err := p.packager.Package(ctx, p.options.Bundle, sign.Identity, ipa, sign.MobileProvision); err != nil {
		return "", err
	}
	if err := require.File(p.env.Fs, ipa, "Packaged IPA"); err != nil {
		return "", err
	}

	p.env.Logger.Debug("Packaged", "ipa", ipa, "name", info.DisplayName)
	return ipa, nil
}

// publish uploads the .ipa, the icon, the manifest and the install page.
func (p *Pipeline) publish(ctx context.Context, info *bundle.Info, data *tmpl.Context, ipa string) (string, error) {
	logger := p.env.Logger
	root := path.Join(p.env.Config.DropboxRoot, info.Identifier)

	fi, err := p.env.Fs.Stat(ipa)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", ipa, err)
	}

	algorithm := p.env.Config.Checksum
	sum, err := checksum.File(p.env.Fs, ipa, algorithm)
	if err != nil {
		return "", fmt.Errorf("failed to checksum %s: %w", ipa, err)
	}
	data.Set(tmpl.IPASize, tmpl.MiB(fi.Size()))
	data.Set(tmpl.IPAChecksum, sum)
	data.Set(tmpl.ChecksumAlgorithm, algorithm.Label())

	remoteIPA := path.Join(root, RemoteName(info.DisplayName, ".ipa"))
	if !strings.HasPrefix(remoteIPA, root+"/") {
		return "", failure.New(failure.Precondition, "Remote path outside the bundle folder.",
			fmt.Sprintf("path = %s", remoteIPA))
	}

	logger.Info("Uploading IPA", "size", data.Get(tmpl.IPASize), string(algorithm), sum)
	ipaURL, err := p.put(ctx, ipa, remoteIPA)
	if err != nil {
		return "", err
	}
	data.Set(tmpl.IPAURL, ipaURL)

	logger.Info("Uploading icon")
	iconURL, err := p.put(ctx, info.Icon, path.Join(root, RemoteIcon))
	if err != nil {
		return "", err
	}
	data.Set(tmpl.IconURL, iconURL)

	logger.Info("Uploading manifest")
	manifestURL, err := p.render(ctx, data, tmpl.Manifest, path.Join(root, RemoteManifest))
	if err != nil {
		return "", err
	}
	data.Set(tmpl.ManifestURL, manifestURL)
	data.Set(tmpl.ManifestURLQuoted, tmpl.QuoteAll(manifestURL))

	logger.Info("Uploading install page")
	return p.render(ctx, data, tmpl.Index, path.Join(root, RemoteIndex))
}

// RemoteName returns a single path element for a file named after name.
// Separators are replaced and names that would leave the folder fall back
// to Output.
func RemoteName(name, ext string) string {
	name = strings.TrimSpace(strings.NewReplacer("/", "_", "\\", "_").Replace(name))
	switch name {
	case "", ".", "..":
		name = "Output"
	}
	return name + ext
}

// render writes the named template into the temp dir and uploads it.
func (p *Pipeline) render(ctx context.Context, data *tmpl.Context, name, dst string) (string, error) {
	text, err := data.ApplyFile(p.templates, name)
	if err != nil {
		return "", failure.Wrap(failure.Precondition, "Failed to read template.", err)
	}

	local := filepath.Join(p.env.TmpDir, name)
	if err := afero.WriteFile(p.env.Fs, local, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", local, err)
	}
	return p.put(ctx, local, dst)
}

// put uploads src to dst and returns its public link.
func (p *Pipeline) put(ctx context.Context, src, dst string) (string, error) {
	if err := p.Uploader.Upload(ctx, src, dst); err != nil {
		return "", err
	}
	link, err := p.Uploader.Share(ctx, dst)
	if err != nil {
		return "", err
	}
	p.env.Logger.Debug("Shared", "path", dst, "url", link)
	return link, nil
}
