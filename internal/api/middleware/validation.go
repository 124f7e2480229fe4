package middleware

import (
	stderrors "errors"
	"net/http"

	"audio-transcriber/internal/api/errors"
)

// BodyError maps a failure reading the request body to an APIError.
func BodyError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return errors.NewPayloadTooLargeError(maxErr.Limit)
	}
	return errors.NewBadRequestError("invalid form data")
}
