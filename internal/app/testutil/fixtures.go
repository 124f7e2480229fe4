package testutil

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"testing"

	"audio-transcriber/internal/app/intake"
)

// Candidate builds an in-memory candidate. Payloads up to 64 KiB match the declared
// size; larger sizes are only declared.
func Candidate(name, mediaType string, sizeBytes int64) intake.FileCandidate {
	payload := []byte("payload:" + name)
	if sizeBytes >= 0 && sizeBytes <= 1<<16 {
		payload = make([]byte, sizeBytes)
	}
	return intake.FileCandidate{
		Name:              name,
		DeclaredMediaType: mediaType,
		SizeBytes:         sizeBytes,
		Open:              intake.BytesSource(payload),
	}
}

// MP3 is the accepted candidate used throughout the tests.
func MP3(name string) intake.FileCandidate {
	return Candidate(name, "audio/mpeg", 1_000_000)
}

// PNG is a candidate with an unsupported media type.
func PNG() intake.FileCandidate {
	return Candidate("picture.png", "image/png", 1000)
}

// LargeWAV is an allowed type over the size ceiling.
func LargeWAV() intake.FileCandidate {
	return Candidate("long.wav", "audio/wav", 30_000_000)
}

// MultipartFile encodes one file part named field with the given content type.
// It returns the body and its Content-Type header value.
func MultipartFile(t testing.TB, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	return multipartBody(t, nil, field, filename, contentType, data)
}

// MultipartUpload encodes a "size" field followed by the "file" part, the way the
// upload page sends a file.
func MultipartUpload(t testing.TB, filename, contentType string, size int64, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	fields := map[string]string{"size": strconv.FormatInt(size, 10)}
	return multipartBody(t, fields, "file", filename, contentType, data)
}

func multipartBody(t testing.TB, fields map[string]string, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("Failed to write form field: %v", err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("Failed to create form part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("Failed to write form part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}
