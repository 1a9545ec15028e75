/*
Package plist reads single values out of property list files.

Key paths use PlistBuddy syntax: ":CFBundleIcons:CFBundlePrimaryIcon:CFBundleIconFiles:0".
A lookup that fails for any reason yields an empty string; callers validate
the value afterwards.
*/
package plist

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"howett.net/plist"

	"github.com/oarkflow/otadrop/internal/runner"
)

// DefaultPlistBuddy is where macOS ships PlistBuddy.
const DefaultPlistBuddy = "/usr/libexec/PlistBuddy"

// Reader returns the value at key in the plist at path, or "" if it cannot.
type Reader interface {
	Value(ctx context.Context, path, key string) string
}

// PlistBuddy reads values by running PlistBuddy.
type PlistBuddy struct {
	Path   string
	Runner runner.Runner
}

// NewPlistBuddy creates a PlistBuddy reader. An empty path uses
// DefaultPlistBuddy.
func NewPlistBuddy(r runner.Runner, path string) *PlistBuddy {
	if path == "" {
		path = DefaultPlistBuddy
	}
	return &PlistBuddy{Path: path, Runner: r}
}

// Value implements Reader.
func (p *PlistBuddy) Value(ctx context.Context, path, key string) string {
	out, err := runner.Output(ctx, p.Runner, p.Path, "-c", "Print "+key, path)
	if err != nil {
		return ""
	}
	return out
}

// Native reads values with howett.net/plist, for hosts without PlistBuddy.
type Native struct {
	Fs afero.Fs
}

// NewNative creates a library-backed reader.
func NewNative(fs afero.Fs) *Native {
	return &Native{Fs: fs}
}

// Value implements Reader.
func (n *Native) Value(_ context.Context, path, key string) string {
	data, err := afero.ReadFile(n.Fs, path)
	if err != nil {
		return ""
	}

	var doc interface{}
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return ""
	}

	v, ok := Lookup(doc, key)
	if !ok {
		return ""
	}
	return Format(v)
}

// Lookup walks a decoded plist along a PlistBuddy key path.
func Lookup(doc interface{}, key string) (interface{}, bool) {
	cur := doc
	for _, part := range strings.Split(strings.TrimPrefix(key, ":"), ":") {
		if part == "" {
			continue
		}
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Format renders a scalar the way PlistBuddy prints it. Dictionaries and
// arrays have no single-line form and render as "".
func Format(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case uint64:
		return strconv.FormatUint(val, 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', 6, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', 6, 32)
	case time.Time:
		return val.Local().Format(time.UnixDate)
	case []byte:
		return string(val)
	case plist.UID:
		return fmt.Sprint(uint64(val))
	default:
		return ""
	}
}
