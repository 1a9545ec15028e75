package upload

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/afero"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/require"
	"github.com/oarkflow/otadrop/internal/runner"
)

// DefaultDropboxConfig is the credential file written by dropbox_uploader.sh,
// relative to the home directory.
const DefaultDropboxConfig = ".dropbox_uploader"

var linkRe = regexp.MustCompile(`https://\S+`)

// Dropbox uploads through the dropbox_uploader.sh script.
type Dropbox struct {
	Script string
	Runner runner.Runner
}

// NewDropbox returns a Dropbox uploader. The script and its config file must
// both exist.
func NewDropbox(fs afero.Fs, r runner.Runner, script, configFile string) (*Dropbox, error) {
	if err := require.File(fs, script, "Dropbox uploader script"); err != nil {
		return nil, err
	}
	if err := require.File(fs, configFile, "Dropbox uploader config file", "Please run: "+script); err != nil {
		return nil, err
	}
	return &Dropbox{Script: script, Runner: r}, nil
}

// Upload implements Uploader.
func (d *Dropbox) Upload(ctx context.Context, src, dst string) error {
	if err := d.Runner.Run(ctx, nil, d.Script, "upload", src, dst); err != nil {
		return failure.Wrap(failure.Tool, "Upload failed.", err)
	}
	return nil
}

// Share implements Uploader.
func (d *Dropbox) Share(ctx context.Context, path string) (string, error) {
	out, err := runner.Output(ctx, d.Runner, d.Script, "share", path)
	if err != nil {
		return "", failure.Wrap(failure.Tool, "Share failed.", err)
	}

	link := linkRe.FindString(out)
	if link == "" {
		return "", failure.New(failure.Tool, "Share failed.", fmt.Sprintf("path = %s", path), "output = "+out)
	}
	return DirectLink(link), nil
}
