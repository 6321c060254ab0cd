package transfer

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
)

// digester computes several digests of a stream at once while it is being
// written to its destination.
type digester struct {
	hashes map[string]hash.Hash
	writer io.Writer
}

// newDigester creates a digester for the given algorithms wrapping dst.
// Unknown algorithm names are skipped.
func newDigester(dst io.Writer, algorithms []string) *digester {
	hashes := make(map[string]hash.Hash, len(algorithms))
	writers := []io.Writer{dst}
	for _, algo := range algorithms {
		var h hash.Hash
		switch algo {
		case "sha512":
			h = sha512.New()
		case "sha256":
			h = sha256.New()
		case "sha1":
			h = sha1.New()
		case "md5":
			h = md5.New()
		default:
			continue
		}
		hashes[algo] = h
		writers = append(writers, h)
	}
	return &digester{hashes: hashes, writer: io.MultiWriter(writers...)}
}

func (d *digester) Write(p []byte) (int, error) { return d.writer.Write(p) }

// sums returns the computed digests as lowercase hex.
func (d *digester) sums() map[string]string {
	out := make(map[string]string, len(d.hashes))
	for algo, h := range d.hashes {
		out[algo] = hex.EncodeToString(h.Sum(nil))
	}
	return out
}
