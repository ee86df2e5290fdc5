package therapy

import (
	"errors"
	"fmt"

	"github.com/clinic/therapy/internal/platform/apiclient"
)

var (
	// ErrBusy is returned when a mutation starts while another one on the same
	// view is still in flight.
	ErrBusy = errors.New("another operation is in progress")
	// ErrDeleteNotConfirmed is returned when a delete was not confirmed by the operator.
	ErrDeleteNotConfirmed = errors.New("package deletion was not confirmed")
	// ErrSuperseded is returned to a fetch whose result was discarded because a
	// newer fetch started after it.
	ErrSuperseded = errors.New("fetch superseded by a newer request")
)

// ValidationError is a client-side rejection detected before any backend call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// FetchError reports a failed package listing.
type FetchError struct {
	PatientID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch packages for patient %s: %v", e.PatientID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SubmissionError reports a failed mutation. Message is the operator-facing
// text for the operation that failed.
type SubmissionError struct {
	Op      string
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

const (
	msgUnexpected     = "erro inesperado"
	msgSessionExpired = "sessão expirada, faça login novamente"
	msgFetchFailed    = "erro ao carregar pacotes"
)

// UserMessage converts any error from this package into text safe to show an
// operator. Unknown errors collapse to a generic message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return msgSessionExpired
	}
	switch {
	case errors.Is(err, ErrBusy):
		return "aguarde a operação em andamento terminar"
	case errors.Is(err, ErrDeleteNotConfirmed):
		return "confirme a exclusão do pacote"
	}
	var se *SubmissionError
	if errors.As(err, &se) {
		if msg := apiclient.ServerMessage(err); msg != "" {
			return se.Message + ": " + msg
		}
		return se.Message
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		if msg := apiclient.ServerMessage(err); msg != "" {
			return msgFetchFailed + ": " + msg
		}
		return msgFetchFailed
	}
	return msgUnexpected
}
