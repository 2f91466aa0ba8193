package transcription

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when no session could be configured. No
	// external call was made and nothing was written.
	ErrConfiguration = errors.New("speech session configuration failed")
	// ErrInvalidPayload is returned for audio that cannot be streamed.
	ErrInvalidPayload = errors.New("invalid audio payload")
	// ErrSessionCanceled is wrapped by every *CancellationError.
	ErrSessionCanceled = errors.New("speech session canceled")
	// ErrTranscriptLost is returned when a completed transcript could not be written.
	ErrTranscriptLost = errors.New("transcript lost")
	// ErrNotAnnounced is returned when a transcript was stored but its change
	// notification could not be published. The document exists; its summary
	// is pending until the id is replayed.
	ErrNotAnnounced = errors.New("transcript stored but not announced")
)

// NotAnnouncedError carries the id of a stored transcript whose change
// notification failed.
type NotAnnouncedError struct {
	ID  string
	Err error
}

func (e *NotAnnouncedError) Error() string {
	return fmt.Sprintf("transcript %s stored but not announced: %v", e.ID, e.Err)
}

func (e *NotAnnouncedError) Unwrap() []error {
	return []error{ErrNotAnnounced, e.Err}
}

// CancellationError carries the engine's error code and details for a session
// that terminated with an error.
type CancellationError struct {
	Code    string
	Details string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("speech session canceled: code=%s details=%s", e.Code, e.Details)
}

func (e *CancellationError) Unwrap() error {
	return ErrSessionCanceled
}
