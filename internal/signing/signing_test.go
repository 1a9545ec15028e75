package signing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/plist"
	"github.com/oarkflow/otadrop/internal/profile"
	"github.com/oarkflow/otadrop/internal/runner/runnertest"
)

const identities = `  1) 0123456789ABCDEF0123456789ABCDEF01234567 "iPhone Developer: Jane Doe (ABCDE12345)"
  2) 89ABCDEF0123456789ABCDEF0123456789ABCDEF "iPhone Distribution: Acme Corp (XYZ9876543)"
     2 valid identities found
`

const profilesDir = "/Users/me/Library/MobileDevice/Provisioning Profiles"

func named(name string) runnertest.Response {
	return runnertest.Response{Stdout: fmt.Sprintf(`<plist version="1.0"><dict><key>Name</key><string>%s</string></dict></plist>`, name)}
}

func newResolver(f *runnertest.Fake, files ...string) *Resolver {
	fs := afero.NewMemMapFs()
	for _, name := range files {
		_ = afero.WriteFile(fs, profilesDir+"/"+name, []byte("cms"), 0o644)
	}
	return &Resolver{
		Runner:      f,
		Fs:          fs,
		Profiles:    profile.New(profile.NewSecurity(f, fs, ""), plist.NewNative(fs), "/tmp"),
		ProfilesDir: profilesDir,
	}
}

func TestFindIdentity(t *testing.T) {
	f := runnertest.NewFake().On("security find-identity -v -p codesigning", runnertest.Response{Stdout: identities})

	identity, err := newResolver(f).FindIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "iPhone Distribution: Acme Corp (XYZ9876543)", identity)
}

func TestFindIdentityNone(t *testing.T) {
	f := runnertest.NewFake().On("security find-identity", runnertest.Response{Stdout: "     0 valid identities found\n"})

	_, err := newResolver(f).FindIdentity(context.Background())
	assert.Equal(t, failure.Resolution, failure.KindOf(err))
	assert.EqualError(t, err, "Failed to find signing identity.")
}

func TestFindIdentityToolFailure(t *testing.T) {
	f := runnertest.NewFake().On("security find-identity", runnertest.Response{Err: errors.New("exit status 1")})

	_, err := newResolver(f).FindIdentity(context.Background())
	assert.Equal(t, failure.Tool, failure.KindOf(err))
}

func TestFindMobileProvision(t *testing.T) {
	f := runnertest.NewFake().
		On("security cms -D -i "+profilesDir+"/a.mobileprovision", named("XC Ad Hoc: com.acme.Other")).
		On("security cms -D -i "+profilesDir+"/b.mobileprovision", runnertest.Response{Err: errors.New("exit status 1")}).
		On("security cms -D -i "+profilesDir+"/c.mobileprovision", named("XC Ad Hoc: com.acme.Tester")).
		On("security cms -D -i "+profilesDir+"/d.mobileprovision", named("XC Ad Hoc: com.acme.Tester"))

	r := newResolver(f, "a.mobileprovision", "b.mobileprovision", "c.mobileprovision", "d.mobileprovision", "notes.txt")

	path, err := r.FindMobileProvision(context.Background(), ProfileName("com.acme.Tester"))
	require.NoError(t, err)
	assert.Equal(t, profilesDir+"/c.mobileprovision", path)
	assert.False(t, f.Ran("security cms -D -i "+profilesDir+"/d.mobileprovision"))
}

func TestFindMobileProvisionNone(t *testing.T) {
	f := runnertest.NewFake().On("security cms -D", named("XC Ad Hoc: com.acme.Other"))

	_, err := newResolver(f, "a.mobileprovision").FindMobileProvision(context.Background(), ProfileName("com.acme.Tester"))
	assert.Equal(t, failure.Resolution, failure.KindOf(err))
	assert.EqualError(t, err, "Failed to find mobile provision.")
}

func TestResolveOverridesSkipSearch(t *testing.T) {
	f := runnertest.NewFake()

	info, err := newResolver(f).Resolve(context.Background(), "com.acme.Tester", Info{
		Identity:        "iPhone Distribution: Override (1)",
		MobileProvision: "/x.mobileprovision",
	})
	require.NoError(t, err)
	assert.Equal(t, "iPhone Distribution: Override (1)", info.Identity)
	assert.Equal(t, "/x.mobileprovision", info.MobileProvision)
	assert.Empty(t, f.Calls())
}

func TestResolveSearchesMissing(t *testing.T) {
	f := runnertest.NewFake().
		On("security find-identity", runnertest.Response{Stdout: identities}).
		On("security cms -D", named("XC Ad Hoc: com.acme.Tester"))

	info, err := newResolver(f, "p.mobileprovision").Resolve(context.Background(), "com.acme.Tester", Info{})
	require.NoError(t, err)
	assert.Equal(t, "iPhone Distribution: Acme Corp (XYZ9876543)", info.Identity)
	assert.Equal(t, profilesDir+"/p.mobileprovision", info.MobileProvision)
}
