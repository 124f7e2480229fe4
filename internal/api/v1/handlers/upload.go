package handlers

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"audio-transcriber/internal/api/errors"
	"audio-transcriber/internal/api/middleware"
	"audio-transcriber/internal/app/intake"
)

const (
	fileField = "file"
	// sizeField optionally precedes the file part with the file's size in bytes. It is
	// only consulted when the body limit cuts the file part short.
	sizeField = "size"
)

// readUpload streams a multipart body and turns its "file" part into an intake candidate.
//
// The declared media type is the part's Content-Type, never sniffed. A payload within the
// policy ceiling is buffered so it outlives the request. A larger one is only counted and
// the candidate carries no payload, so it is rejected on metadata like any other oversize
// file. When the body limit stops the count early the size is the larger of the bytes
// seen and the size field.
func readUpload(r *http.Request, policy intake.Policy) (intake.FileCandidate, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return intake.FileCandidate{}, errors.NewBadRequestError("invalid form data")
	}

	var declared int64
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return intake.FileCandidate{}, errors.NewValidationError("Validation failed", map[string]string{
				fileField: "is required",
			})
		}
		if err != nil {
			return intake.FileCandidate{}, middleware.BodyError(err)
		}

		switch part.FormName() {
		case fileField:
			return readFilePart(part, policy, declared)
		case sizeField:
			value, err := io.ReadAll(io.LimitReader(part, 32))
			if err != nil {
				return intake.FileCandidate{}, middleware.BodyError(err)
			}
			declared, _ = strconv.ParseInt(strings.TrimSpace(string(value)), 10, 64)
		}
		part.Close()
	}
}

func readFilePart(part *multipart.Part, policy intake.Policy, declared int64) (intake.FileCandidate, error) {
	defer part.Close()

	candidate := intake.FileCandidate{
		Name:              part.FileName(),
		DeclaredMediaType: part.Header.Get("Content-Type"),
	}
	maxSize := policy.MaxSizeBytes()

	var buf bytes.Buffer
	n, err := io.CopyN(&buf, part, maxSize+1)
	switch {
	case err == io.EOF:
		candidate.SizeBytes = n
		candidate.Open = intake.BytesSource(buf.Bytes())
		return candidate, nil
	case err != nil:
		return metadataOnly(candidate, n, declared, policy, err)
	}

	rest, err := io.Copy(io.Discard, part)
	if err != nil {
		return metadataOnly(candidate, n+rest, declared, policy, err)
	}
	candidate.SizeBytes = n + rest
	candidate.Open = notBuffered(candidate.Name)
	return candidate, nil
}

// metadataOnly builds a payload-less candidate for a file part the body limit cut short.
// If the candidate would still pass validation the limit is below the ceiling and the
// request is answered with 413 instead.
func metadataOnly(candidate intake.FileCandidate, seen, declared int64, policy intake.Policy, readErr error) (intake.FileCandidate, error) {
	var maxErr *http.MaxBytesError
	if !stderrors.As(readErr, &maxErr) {
		return intake.FileCandidate{}, middleware.BodyError(readErr)
	}

	candidate.SizeBytes = max(seen, declared)
	candidate.Open = notBuffered(candidate.Name)
	if _, err := policy.Validate(candidate); err == nil {
		return intake.FileCandidate{}, errors.NewPayloadTooLargeError(maxErr.Limit)
	}
	return candidate, nil
}

func notBuffered(name string) intake.Opener {
	return func() (io.ReadCloser, error) {
		return nil, fmt.Errorf("%s was not buffered", name)
	}
}
