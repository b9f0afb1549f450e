package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies which operation failed.
type Kind int

const (
	// KindInit: process-wide engine initialization failed
	KindInit Kind = iota + 1
	// KindElementCreate: an element factory could not build an element
	KindElementCreate
	// KindBinAdd: an element or pad could not be added to a bin
	KindBinAdd
	// KindElementLink: two elements could not be linked
	KindElementLink
	// KindElementSync: an element could not sync its state with its parent
	KindElementSync
	// KindStateChange: the engine refused a state transition
	KindStateChange
	// KindMessageParse: a bus message could not be interpreted
	KindMessageParse
	// KindPlayback: the engine reported an error while playing
	KindPlayback
	// KindMissingURL: Play was called without any URL
	KindMissingURL
	// KindInvalidVolume: a negative (or NaN) volume was requested
	KindInvalidVolume
)

// String returns the operation name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindInit:
		return "gst.Init()"
	case KindElementCreate:
		return "gst.NewElement()"
	case KindBinAdd:
		return "Bin.Add()"
	case KindElementLink:
		return "Element.Link()"
	case KindElementSync:
		return "Element.SyncStateWithParent()"
	case KindStateChange:
		return "Element.SetState()"
	case KindMessageParse:
		return "Message.Parse()"
	case KindPlayback:
		return "Message.Error"
	case KindMissingURL:
		return "Player.Play()"
	case KindInvalidVolume:
		return "Player.SetVolume()"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the player and its engine.
//
// Callers match the kind with errors.Is against the Err* sentinels and reach the
// details (Raw message, Volume, Category) with errors.As.
type Error struct {
	Kind Kind
	// Op names the element or call that failed (e.g. "videorate", "playbin").
	Op string
	// Err is the underlying cause, if any.
	Err error
	// Raw is the offending bus message for KindMessageParse.
	Raw string
	// Volume is the rejected value for KindInvalidVolume.
	Volume float64
	// Category classifies KindPlayback errors for telemetry.
	Category ErrorCategory
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingURL:
		return "mediaplayer: Player.Play(): missing url"
	case KindInvalidVolume:
		return fmt.Sprintf("mediaplayer: invalid volume %v", e.Volume)
	case KindMessageParse:
		return fmt.Sprintf("mediaplayer: %s: %v: %s", e.Kind, e.Err, e.Raw)
	}

	var b strings.Builder
	b.WriteString("mediaplayer: ")
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" [")
		b.WriteString(e.Op)
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrInit          = &Error{Kind: KindInit}
	ErrElementCreate = &Error{Kind: KindElementCreate}
	ErrBinAdd        = &Error{Kind: KindBinAdd}
	ErrElementLink   = &Error{Kind: KindElementLink}
	ErrElementSync   = &Error{Kind: KindElementSync}
	ErrStateChange   = &Error{Kind: KindStateChange}
	ErrMessageParse  = &Error{Kind: KindMessageParse}
	ErrPlayback      = &Error{Kind: KindPlayback}
	ErrMissingURL    = &Error{Kind: KindMissingURL}
	ErrInvalidVolume = &Error{Kind: KindInvalidVolume}
)

// NewError builds an *Error of the given kind for the named element or call.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// PlaybackError wraps an engine-reported error and classifies it.
func PlaybackError(source, message, debug string) *Error {
	return &Error{
		Kind:     KindPlayback,
		Op:       source,
		Err:      errors.New(message),
		Raw:      debug,
		Category: ClassifyError(message, debug),
	}
}

// ErrorCategory represents the classification of engine errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown ErrorCategory = iota
	// ErrCategoryNetwork indicates network-related failures (connection, timeout, DNS)
	ErrCategoryNetwork
	// ErrCategoryCodec indicates codec/stream failures (decode errors, format issues)
	ErrCategoryCodec
	// ErrCategoryAuth indicates authentication/authorization failures
	ErrCategoryAuth
	// ErrCategoryResource indicates missing or unreadable sources (file not found, permissions)
	ErrCategoryResource
)

// String returns a human-readable string representation of the error category
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

// ClassifyError categorizes an engine error message for telemetry.
//
// go-gst's GError does not expose the error domain, so classification relies on
// keywords in the message and debug strings. Auth is checked first (most specific),
// then codec, resource and network.
func ClassifyError(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)
	if strings.TrimSpace(combined) == "" {
		return ErrCategoryUnknown
	}

	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

var (
	authKeywords = []string{
		"unauthorized", "401", "403", "forbidden", "authentication", "credentials",
	}
	codecKeywords = []string{
		"codec", "decode", "not negotiated", "not-negotiated", "negotiation", "caps", "no decoder",
		"missing plugin", "video info",
	}
	resourceKeywords = []string{
		"no such file", "could not open", "permission denied", "resource not found",
		"not a valid uri", "no uri handler",
	}
	networkKeywords = []string{
		"connection", "timeout", "timed out", "unreachable", "network", "dns", "resolve",
		"socket", "could not connect", "failed to connect", "http",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
