// Package compression provides the precompressed siblings written next to
// every built file.
package compression

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	// Extension is appended to the original file name, e.g. ".gz".
	Extension() string
	// Encoding is the Content-Encoding token for the compressed file.
	Encoding() string
}

// All returns every supported compressor in preference order.
func All() []Compressor {
	return []Compressor{ZstdCompressor{}, GzipCompressor{}}
}

// ForExtension finds the compressor whose extension matches, if any.
func ForExtension(ext string) (Compressor, bool) {
	for _, c := range All() {
		if c.Extension() == ext {
			return c, true
		}
	}
	return nil, false
}
