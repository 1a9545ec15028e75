/*
Package icon picks the largest app icon present in a bundle.

Icon stems come from Info.plist (e.g. "AppIcon60x60"). Each stem expands to
one candidate file per scale and device suffix, and the largest one that
exists on disk wins.
*/
package icon

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/spf13/afero"

	"github.com/oarkflow/otadrop/internal/plist"
)

// Keys holding the primary icon stems for phone and tablet.
var Keys = []string{
	":CFBundleIcons:CFBundlePrimaryIcon:CFBundleIconFiles",
	":CFBundleIcons~ipad:CFBundlePrimaryIcon:CFBundleIconFiles",
}

// maxStems bounds how many array entries are read per key.
const maxStems = 32

var sizeRe = regexp.MustCompile(`(\d+)x\d+`)

// Scale is an icon scale multiplier and its filename suffix.
type Scale struct {
	Factor int
	Suffix string
}

// Scales are tried in this order.
var Scales = []Scale{
	{Factor: 1, Suffix: ""},
	{Factor: 2, Suffix: "@2x"},
	{Factor: 3, Suffix: "@3x"},
}

// Devices are the device suffixes tried for every scale.
var Devices = []string{"", "~iphone", "~ipad"}

// Candidate is a possible icon filename and its size in pixels.
type Candidate struct {
	Name   string
	Pixels int
}

// Size returns the nominal point size declared in a stem such as
// "AppIcon60x60".
func Size(stem string) (int, bool) {
	m := sizeRe.FindStringSubmatch(stem)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Candidates expands stems into candidate files in search order. Stems
// without a size token are skipped.
func Candidates(stems []string) []Candidate {
	var out []Candidate
	for _, stem := range stems {
		size, ok := Size(stem)
		if !ok {
			continue
		}
		for _, scale := range Scales {
			for _, device := range Devices {
				out = append(out, Candidate{
					Name:   fmt.Sprintf("%s%s%s.png", stem, scale.Suffix, device),
					Pixels: size * scale.Factor,
				})
			}
		}
	}
	return out
}

// Best returns the largest candidate for which exists reports true. The
// first existing candidate is kept on ties.
func Best(candidates []Candidate, exists func(name string) bool) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, c := range candidates {
		if !exists(c.Name) {
			continue
		}
		if !found || c.Pixels > best.Pixels {
			best, found = c, true
		}
	}
	return best, found
}

// Stems reads the icon stems declared in the Info.plist at infoPlist.
func Stems(ctx context.Context, reader plist.Reader, infoPlist string) []string {
	var stems []string
	for _, key := range Keys {
		for i := 0; i < maxStems; i++ {
			stem := reader.Value(ctx, infoPlist, fmt.Sprintf("%s:%d", key, i))
			if stem == "" {
				break
			}
			stems = append(stems, stem)
		}
	}
	return stems
}

// Find returns the path of the best icon in bundleDir, or "" if none exists.
func Find(ctx context.Context, fs afero.Fs, reader plist.Reader, bundleDir string) string {
	candidates := Candidates(Stems(ctx, reader, filepath.Join(bundleDir, "Info.plist")))

	best, ok := Best(candidates, func(name string) bool {
		fi, err := fs.Stat(filepath.Join(bundleDir, name))
		return err == nil && fi.Mode().IsRegular()
	})
	if !ok {
		return ""
	}
	return filepath.Join(bundleDir, best.Name)
}
