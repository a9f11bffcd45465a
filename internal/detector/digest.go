package detector

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strconv"

	"github.com/driftlock/driftlock/pkg/errors"
)

// sampledDigestThreshold is the size at or above which Digest hashes a sample
// instead of the full file content.
const sampledDigestThreshold = 1 << 30 // 1 GiB

// sampleBlockSize is the size of each of the three blocks read for a
// sampled digest.
const sampleBlockSize = 1 << 20 // 1 MiB

// Digest computes path's checksum per algorithm. The mtime algorithm
// never touches the file; it returns mtime itself as a digest string.
func Digest(path string, algorithm Algorithm, size, mtime int64) (string, error) {
	switch algorithm {
	case AlgorithmMTime:
		return strconv.FormatInt(mtime, 10), nil
	case AlgorithmMD5, AlgorithmSHA256:
		if size < sampledDigestThreshold {
			return fullDigest(path, algorithm)
		}
		return sampledDigest(path, algorithm, size)
	default:
		return "", errors.New(errors.CodeInternal, "unknown checksum algorithm: "+string(algorithm))
	}
}

func fullDigest(path string, algorithm Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.New(errors.CodeLocalIO, "failed to open file for digest: "+path).WithCause(err)
	}
	defer func() { _ = f.Close() }()

	h := newHash(algorithm)
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.New(errors.CodeLocalIO, "failed to hash file: "+path).WithCause(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sampledDigest hashes the first, middle, and last 1 MiB blocks of a large
// file in sequence, avoiding a full read of content that won't fit in a
// reasonable scan window.
func sampledDigest(path string, algorithm Algorithm, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.New(errors.CodeLocalIO, "failed to open file for digest: "+path).WithCause(err)
	}
	defer func() { _ = f.Close() }()

	h := newHash(algorithm)
	middleOffset := size/2 - sampleBlockSize/2

	for _, offset := range []int64{0, middleOffset, size - sampleBlockSize} {
		if err := hashRange(h, f, offset, sampleBlockSize); err != nil {
			return "", errors.New(errors.CodeLocalIO, "failed to hash sample range of file: "+path).WithCause(err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashRange(h hash.Hash, f *os.File, offset, length int64) error {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.CopyN(h, f, length)
	if err == io.EOF {
		return nil
	}
	return err
}

func newHash(algorithm Algorithm) hash.Hash {
	if algorithm == AlgorithmSHA256 {
		return sha256.New()
	}
	return md5.New()
}
