package intake

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extensionTypes maps file extensions to the media type a browser would declare for them.
// The system MIME database varies between hosts, so the table is fixed.
var extensionTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".m4a":  "audio/x-m4a",
	".wav":  "audio/wav",
	".weba": "audio/webm",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// MediaTypeByExtension returns the declared media type for a file name, or
// "application/octet-stream" when the extension is unknown.
func MediaTypeByExtension(name string) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "application/octet-stream"
}

// BytesSource returns an Opener over an in-memory payload.
func BytesSource(data []byte) Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// CandidateFromFile describes a local file as a candidate. The file is opened lazily.
func CandidateFromFile(path string) (FileCandidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileCandidate{}, err
	}
	return FileCandidate{
		Name:              filepath.Base(path),
		DeclaredMediaType: MediaTypeByExtension(path),
		SizeBytes:         info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
