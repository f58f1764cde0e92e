package storage

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// DefaultChecksumAlgo is used when the config does not name an algorithm.
const DefaultChecksumAlgo = "md5"

// checksumBufferSize bounds the memory used while hashing a stream.
const checksumBufferSize = 32 * 1024

var checksumAlgos = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"crc32":  func() hash.Hash { return crc32.NewIEEE() },
	"xxhash": func() hash.Hash { return xxhash.New() },
	"blake2b": func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails for oversized keys
		return h
	},
}

// ChecksumAlgos returns the supported algorithm names, sorted.
func ChecksumAlgos() []string {
	names := make([]string, 0, len(checksumAlgos))
	for name := range checksumAlgos {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewChecksumHash returns a fresh hash for algo.
func NewChecksumHash(algo string) (hash.Hash, error) {
	factory, ok := checksumAlgos[strings.ToLower(algo)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", algo, ErrChecksumAlgoNotSupported)
	}
	return factory(), nil
}

// ChecksumFromStream hashes r incrementally and returns the hex digest.
//
// Memory use is bounded by a fixed buffer regardless of the stream length.
// The reader is not closed.
func ChecksumFromStream(r io.Reader, algo string) (string, error) {
	h, err := NewChecksumHash(algo)
	if err != nil {
		return "", err
	}

	buf := make([]byte, checksumBufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
