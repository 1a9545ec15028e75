// Package packaging turns a signed .app bundle into an .ipa with Xcode's
// PackageApplication script.
package packaging

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/runner"
)

// DefaultPackageApplication is where Xcode ships the packaging script.
const DefaultPackageApplication = "/Applications/Xcode.app/Contents/Developer/Platforms/iPhoneOS.platform/Developer/usr/bin/PackageApplication"

// Packager runs a patched private copy of PackageApplication.
type Packager struct {
	Runner runner.Runner
	Fs     afero.Fs
	Logger *log.Logger

	// PackageApplication is the stock script.
	PackageApplication string
	// Patch is applied to the copy before it is run.
	Patch string
	// PatchTool is the patch executable.
	PatchTool string
	// WorkDir receives the patched copy.
	WorkDir string

	tool string
}

// Tool returns the path of the patched copy once Prepare has run.
func (p *Packager) Tool() string {
	return p.tool
}

// Prepare copies PackageApplication into the work dir and patches it.
func (p *Packager) Prepare(ctx context.Context) error {
	src := p.PackageApplication
	if src == "" {
		src = DefaultPackageApplication
	}
	dst := filepath.Join(p.WorkDir, "PackageApplication")

	if err := copyFile(p.Fs, src, dst); err != nil {
		return failure.Wrap(failure.Tool, "Failed to copy PackageApplication.", err)
	}

	patchTool := p.PatchTool
	if patchTool == "" {
		patchTool = "patch"
	}
	if err := p.Runner.Run(ctx, nil, patchTool, dst, p.Patch); err != nil {
		return failure.Wrap(failure.Tool, "Failed to patch PackageApplication.", err)
	}

	p.tool = dst
	if p.Logger != nil {
		p.Logger.Debug("Prepared PackageApplication", "path", dst)
	}
	return nil
}

// Package builds output from bundle, re-signing it with identity and
// embedding mobileProvision. output must be absolute.
func (p *Packager) Package(ctx context.Context, bundle, identity, output, mobileProvision string) error {
	if p.tool == "" {
		return fmt.Errorf("PackageApplication has not been prepared")
	}
	if !filepath.IsAbs(output) {
		return fmt.Errorf("output path must be absolute: %s", output)
	}

	args := []string{
		bundle,
		"-s", identity,
		"-o", output,
		"--embed", mobileProvision,
	}
	if err := p.Runner.Run(ctx, nil, p.tool, args...); err != nil {
		return failure.Wrap(failure.Tool, "PackageApplication failed.", err)
	}
	return nil
}

// copyFile copies src to dst as an executable.
func copyFile(fs afero.Fs, src, dst string) error {
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, dst, data, 0o755)
}
