/*
Package signing resolves the signing identity and provisioning profile used to
(re)sign a bundle.
*/
package signing

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/profile"
	"github.com/oarkflow/otadrop/internal/runner"
)

// AdHocPrefix is the name Xcode gives managed ad hoc profiles, followed by
// the bundle identifier.
const AdHocPrefix = "XC Ad Hoc: "

// DefaultProfilesDir is where Xcode installs provisioning profiles, relative
// to the home directory.
const DefaultProfilesDir = "Library/MobileDevice/Provisioning Profiles"

var identityRe = regexp.MustCompile(`iPhone Distribution: .* \(.*\)`)

// Info is the resolved signing information.
type Info struct {
	Identity        string
	MobileProvision string
}

// Resolver finds signing information on the local machine.
type Resolver struct {
	Runner   runner.Runner
	Fs       afero.Fs
	Profiles *profile.Profiles
	// Security is the security tool path.
	Security string
	// ProfilesDir is searched for *.mobileprovision files.
	ProfilesDir string
	Logger      *log.Logger
}

// ProfileName returns the expected ad hoc profile name for a bundle.
func ProfileName(bundleIdentifier string) string {
	return AdHocPrefix + bundleIdentifier
}

// FindIdentity returns the first iPhone Distribution identity in the
// keychain.
func (r *Resolver) FindIdentity(ctx context.Context) (string, error) {
	security := r.Security
	if security == "" {
		security = "security"
	}

	out, err := runner.Output(ctx, r.Runner, security, "find-identity", "-v", "-p", "codesigning")
	if err != nil {
		return "", failure.Wrap(failure.Tool, "Failed to list signing identities.", err)
	}

	identity := identityRe.FindString(out)
	if identity == "" {
		return "", failure.New(failure.Resolution, "Failed to find signing identity.")
	}
	return identity, nil
}

// FindMobileProvision returns the first installed profile whose Name equals
// name.
func (r *Resolver) FindMobileProvision(ctx context.Context, name string) (string, error) {
	matches, err := afero.Glob(r.Fs, filepath.Join(r.ProfilesDir, "*.mobileprovision"))
	if err != nil {
		return "", failure.Wrap(failure.Resolution, "Failed to find mobile provision.", err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		got, ok := r.Profiles.Value(ctx, path, profile.KeyName)
		if !ok {
			if r.Logger != nil {
				r.Logger.Debug("Skipping undecodable profile", "path", path)
			}
			continue
		}
		if got == name {
			return path, nil
		}
	}

	return "", failure.New(failure.Resolution, "Failed to find mobile provision.", "name = "+name)
}

// Resolve returns the signing information for bundleIdentifier. Non-empty
// overrides skip the corresponding search.
func (r *Resolver) Resolve(ctx context.Context, bundleIdentifier string, override Info) (*Info, error) {
	info := override

	if info.Identity == "" {
		identity, err := r.FindIdentity(ctx)
		if err != nil {
			return nil, err
		}
		info.Identity = identity
	}

	if info.MobileProvision == "" {
		path, err := r.FindMobileProvision(ctx, ProfileName(bundleIdentifier))
		if err != nil {
			return nil, err
		}
		info.MobileProvision = path
	}

	return &info, nil
}
