package sunshine

import "fmt"

// Kind identifies the abstract error taxonomy every operation in this
// package (and the session/webrtcbridge packages that build on it) reports
// through.
type Kind int

const (
	KindNetwork Kind = iota
	KindHostRejected
	KindParse
	KindPairingAuthFailed
	KindNotPaired
	KindNotSupportedOnHost
	KindInstanceAlreadyExists
	KindConnectionAlreadyExists
	KindEventSendError
	KindDecoderError
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "Network"
	case KindHostRejected:
		return "HostRejected"
	case KindParse:
		return "Parse"
	case KindPairingAuthFailed:
		return "PairingAuthFailed"
	case KindNotPaired:
		return "NotPaired"
	case KindNotSupportedOnHost:
		return "NotSupportedOnHost"
	case KindInstanceAlreadyExists:
		return "InstanceAlreadyExists"
	case KindConnectionAlreadyExists:
		return "ConnectionAlreadyExists"
	case KindEventSendError:
		return "EventSendError"
	case KindDecoderError:
		return "DecoderError"
	case KindTransport:
		return "Transport"
	default:
		return "Unknown"
	}
}

// Error is the sentinel-plus-cause error shape used throughout this module,
// compatible with errors.Is/errors.As via Unwrap.
type Error struct {
	Kind    Kind
	Code    int    // HostRejected status_code / DecoderError code, else 0
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, sunshine.Kind) style checks against the Kind by
// comparing against a zero-value *Error of the same Kind via errors.Is
// semantics is awkward in Go, so callers should use IsKind instead.
func IsKind(err error, kind Kind) bool {
	var se *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			se = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return se != nil && se.Kind == kind
}

func newNetwork(cause error) error {
	return &Error{Kind: KindNetwork, Message: "transport failure", Cause: cause}
}

func newParse(msg string, cause error) error {
	return &Error{Kind: KindParse, Message: msg, Cause: cause}
}

func newHostRejected(code int, message string) error {
	return &Error{Kind: KindHostRejected, Code: code, Message: message}
}

func newPairingAuthFailed(msg string) error {
	return &Error{Kind: KindPairingAuthFailed, Message: msg}
}

func newNotPaired() error {
	return &Error{Kind: KindNotPaired, Message: "host has no pinned server certificate"}
}

func newNotSupportedOnHost(feature string) error {
	return &Error{Kind: KindNotSupportedOnHost, Message: feature}
}

// NewInstanceAlreadyExists reports a violation of the process-wide
// streaming engine singleton gate.
func NewInstanceAlreadyExists() error {
	return &Error{Kind: KindInstanceAlreadyExists, Message: "a streaming engine instance is already active in this process"}
}

// NewConnectionAlreadyExists reports an attempt to start a session that is
// already connected.
func NewConnectionAlreadyExists() error {
	return &Error{Kind: KindConnectionAlreadyExists, Message: "session is already connected"}
}

// NewEventSendError wraps an input-injection failure reported by the engine.
func NewEventSendError(cause error) error {
	return &Error{Kind: KindEventSendError, Message: "engine rejected input event", Cause: cause}
}

// NewDecoderError reports a non-zero return from a user-supplied decoder.
func NewDecoderError(code int) error {
	return &Error{Kind: KindDecoderError, Code: code, Message: "decoder returned an error"}
}

// NewNotSupportedOnHost reports a feature the host did not advertise.
func NewNotSupportedOnHost(feature string) error {
	return newNotSupportedOnHost(feature)
}

// NewTransport wraps a WebRTC/WS transport failure.
func NewTransport(cause error) error {
	return &Error{Kind: KindTransport, Message: "transport failure", Cause: cause}
}
