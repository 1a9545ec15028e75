// Package checksum provides checksums for published files.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"github.com/spf13/afero"
)

// Algorithm represents a checksum algorithm.
type Algorithm string

const (
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
)

// labels are the names shown next to a digest.
var labels = map[Algorithm]string{
	AlgorithmMD5:    "MD5",
	AlgorithmSHA1:   "SHA-1",
	AlgorithmSHA256: "SHA-256",
	AlgorithmSHA512: "SHA-512",
}

// Validate returns an error for algorithms File does not support.
func Validate(algorithm Algorithm) error {
	_, err := newHash(algorithm)
	return err
}

// Label returns the display name of algorithm, e.g. SHA-256.
func (a Algorithm) Label() string {
	if l, ok := labels[a]; ok {
		return l
	}
	return string(a)
}

// newHash returns the hash for algorithm.
func newHash(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmMD5:
		return md5.New(), nil
	case AlgorithmSHA1:
		return sha1.New(), nil
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
	}
}

// File calculates the checksum of a file as lowercase hex.
func File(fs afero.Fs, path string, algorithm Algorithm) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}

	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
