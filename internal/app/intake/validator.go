package intake

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// MaxSizeBytes is the upload ceiling (25 MiB).
const MaxSizeBytes int64 = 25 * 1024 * 1024

// AllowedMediaTypes lists the declared media types the intake accepts.
var AllowedMediaTypes = []string{
	"audio/mpeg",
	"audio/mp4",
	"audio/wav",
	"audio/x-m4a",
	"audio/webm",
	"video/mp4",
	"video/webm",
}

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("file too large")
)

// Reason enumerates why a candidate was rejected.
type Reason string

const (
	ReasonUnsupportedType Reason = "unsupported_type"
	ReasonTooLarge        Reason = "too_large"
)

// Opener gives access to a candidate's bytes.
type Opener func() (io.ReadCloser, error)

// FileCandidate is a user-selected file before validation.
type FileCandidate struct {
	Name              string
	DeclaredMediaType string
	SizeBytes         int64
	Open              Opener
}

// AcceptedUpload is a candidate that passed validation, unchanged.
type AcceptedUpload struct {
	FileCandidate
}

// ValidationError carries the rejection reason and the offending attribute value.
type ValidationError struct {
	Reason Reason
	Value  string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonUnsupportedType:
		return fmt.Sprintf("%s: %q", ErrUnsupportedType, e.Value)
	case ReasonTooLarge:
		return fmt.Sprintf("%s: %s bytes", ErrTooLarge, e.Value)
	default:
		return "invalid file: " + e.Value
	}
}

// Is lets errors.Is match the reason sentinels.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrUnsupportedType:
		return e.Reason == ReasonUnsupportedType
	case ErrTooLarge:
		return e.Reason == ReasonTooLarge
	}
	return false
}

// Validate checks the declared media type against allowedTypes, then the size against
// maxSizeBytes. The type is checked first, so a candidate failing both reports
// ReasonUnsupportedType. Only metadata is inspected.
func Validate(candidate FileCandidate, allowedTypes map[string]struct{}, maxSizeBytes int64) (AcceptedUpload, error) {
	if _, ok := allowedTypes[candidate.DeclaredMediaType]; !ok {
		return AcceptedUpload{}, &ValidationError{
			Reason: ReasonUnsupportedType,
			Value:  candidate.DeclaredMediaType,
		}
	}
	if candidate.SizeBytes > maxSizeBytes {
		return AcceptedUpload{}, &ValidationError{
			Reason: ReasonTooLarge,
			Value:  strconv.FormatInt(candidate.SizeBytes, 10),
		}
	}
	return AcceptedUpload{FileCandidate: candidate}, nil
}

// Policy bundles an allow-list and a size ceiling.
type Policy struct {
	allowed      map[string]struct{}
	maxSizeBytes int64
}

// NewPolicy builds a policy from a list of media types and a ceiling.
func NewPolicy(allowedTypes []string, maxSizeBytes int64) Policy {
	return Policy{
		allowed: lo.SliceToMap(allowedTypes, func(t string) (string, struct{}) {
			return t, struct{}{}
		}),
		maxSizeBytes: maxSizeBytes,
	}
}

// DefaultPolicy returns the policy used by the service.
func DefaultPolicy() Policy {
	return NewPolicy(AllowedMediaTypes, MaxSizeBytes)
}

// Validate runs Validate with the policy's allow-list and ceiling.
func (p Policy) Validate(candidate FileCandidate) (AcceptedUpload, error) {
	return Validate(candidate, p.allowed, p.maxSizeBytes)
}

// AllowedTypes returns the allow-list in sorted order.
func (p Policy) AllowedTypes() []string {
	types := lo.Keys(p.allowed)
	slices.Sort(types)
	return types
}

// MaxSizeBytes returns the size ceiling; a candidate of exactly this size is accepted.
func (p Policy) MaxSizeBytes() int64 {
	return p.maxSizeBytes
}

// Accept returns the file picker filter for the allow-list. "audio/*" stands in for the
// audio types and the rest are listed. The filter is advisory only.
func (p Policy) Accept() string {
	types := p.AllowedTypes()
	filter := lo.Filter(types, func(t string, _ int) bool {
		return !strings.HasPrefix(t, "audio/")
	})
	if len(filter) < len(types) {
		filter = append([]string{"audio/*"}, filter...)
	}
	return strings.Join(filter, ", ")
}
