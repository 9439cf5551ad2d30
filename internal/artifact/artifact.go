package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Info fingerprints the output artifact once the replay has flushed it.
type Info struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

func Fingerprint(path string) (Info, error) {
	info := Info{Path: path}
	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return info, fmt.Errorf("hash artifact: %w", err)
	}
	info.Bytes = n
	info.SHA256 = hex.EncodeToString(h.Sum(nil))
	return info, nil
}
