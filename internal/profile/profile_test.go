package profile

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mozilla.org/pkcs7"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/plist"
	"github.com/oarkflow/otadrop/internal/runner/runnertest"
)

func decodedProfile(name, apsEnvironment string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>Name</key>
	<string>%s</string>
	<key>Entitlements</key>
	<dict>
		<key>aps-environment</key>
		<string>%s</string>
	</dict>
</dict>
</plist>
`, name, apsEnvironment)
}

func newSecurityProfiles(f *runnertest.Fake) (*Profiles, afero.Fs) {
	fs := afero.NewMemMapFs()
	return New(NewSecurity(f, fs, ""), plist.NewNative(fs), "/tmp/otadrop"), fs
}

func TestSecurityValue(t *testing.T) {
	f := runnertest.NewFake().On("security cms -D -i /Tester.app/embedded.mobileprovision", runnertest.Response{
		Stdout: decodedProfile("XC Ad Hoc: com.acme.Tester", "production"),
	})
	p, fs := newSecurityProfiles(f)

	name, ok := p.Value(context.Background(), "/Tester.app/embedded.mobileprovision", KeyName)
	assert.True(t, ok)
	assert.Equal(t, "XC Ad Hoc: com.acme.Tester", name)

	exists, err := afero.Exists(fs, "/tmp/otadrop/tmp.plist")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestValueDecodeFailureIsDistinctFromMissingKey(t *testing.T) {
	f := runnertest.NewFake().
		On("security cms -D -i /bad.mobileprovision", runnertest.Response{Err: errors.New("exit status 1")}).
		On("security cms -D -i /good.mobileprovision", runnertest.Response{Stdout: decodedProfile("x", "production")})
	p, _ := newSecurityProfiles(f)
	ctx := context.Background()

	v, ok := p.Value(ctx, "/bad.mobileprovision", KeyName)
	assert.False(t, ok)
	assert.Empty(t, v)

	v, ok = p.Value(ctx, "/good.mobileprovision", ":Entitlements:get-task-allow")
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestRequireProduction(t *testing.T) {
	f := runnertest.NewFake().
		On("security cms -D -i /prod.mobileprovision", runnertest.Response{Stdout: decodedProfile("a", "production")}).
		On("security cms -D -i /dev.mobileprovision", runnertest.Response{Stdout: decodedProfile("a", "development")}).
		On("security cms -D -i /broken.mobileprovision", runnertest.Response{Err: errors.New("exit status 1")})
	p, _ := newSecurityProfiles(f)
	ctx := context.Background()

	assert.NoError(t, p.RequireProduction(ctx, "/prod.mobileprovision"))

	for _, src := range []string{"/dev.mobileprovision", "/broken.mobileprovision"} {
		err := p.RequireProduction(ctx, src)
		assert.Equal(t, failure.Policy, failure.KindOf(err), src)
		assert.EqualError(t, err, "Not a production environment app.")
	}
}

func TestPKCS7Decode(t *testing.T) {
	content := []byte(decodedProfile("XC Ad Hoc: com.acme.Tester", "production"))
	signed := signContent(t, content)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p.mobileprovision", signed, 0o644))

	p := New(NewPKCS7(fs), plist.NewNative(fs), "/tmp")
	name, ok := p.Value(context.Background(), "/p.mobileprovision", KeyName)
	assert.True(t, ok)
	assert.Equal(t, "XC Ad Hoc: com.acme.Tester", name)
	assert.NoError(t, p.RequireProduction(context.Background(), "/p.mobileprovision"))
}

func TestPKCS7DecodeRejectsGarbage(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p.mobileprovision", []byte("not cms"), 0o644))

	_, ok := New(NewPKCS7(fs), plist.NewNative(fs), "/tmp").Value(context.Background(), "/p.mobileprovision", KeyName)
	assert.False(t, ok)
}

func signContent(t *testing.T, content []byte) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Apple iPhone OS Provisioning Profile Signing"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	sd, err := pkcs7.NewSignedData(content)
	require.NoError(t, err)
	require.NoError(t, sd.AddSigner(cert, key, pkcs7.SignerInfoConfig{}))

	out, err := sd.Finish()
	require.NoError(t, err)
	return out
}
