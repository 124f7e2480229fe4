package services

import (
	stderrors "errors"

	"audio-transcriber/internal/api/errors"
	"audio-transcriber/internal/app/intake"
	"audio-transcriber/internal/app/session"
	"audio-transcriber/internal/app/workflow"
)

// ToAPIError maps domain errors to API errors. Unknown errors are returned unchanged.
func ToAPIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var verr *intake.ValidationError
	switch {
	case stderrors.Is(err, session.ErrSessionNotFound), stderrors.Is(err, workflow.ErrClosed):
		return errors.NewNotFoundError("session")
	case stderrors.Is(err, workflow.ErrAlreadyLoading):
		return errors.NewConflictError("a transcription is already in progress")
	case stderrors.Is(err, workflow.ErrNoFileSelected):
		apiErr = errors.NewBadRequestError(workflow.MessageNoFile)
		apiErr.Code = string(workflow.ErrorNoFileSelected)
		return apiErr
	case stderrors.As(err, &verr):
		message, code := workflow.MessageUnsupportedType, string(workflow.ErrorUnsupportedType)
		if verr.Reason == intake.ReasonTooLarge {
			message, code = workflow.MessageTooLarge, string(workflow.ErrorTooLarge)
		}
		apiErr = errors.NewValidationError(message, map[string]string{
			"reason": string(verr.Reason),
			"value":  verr.Value,
		})
		apiErr.Code = code
		return apiErr
	}
	return err
}
