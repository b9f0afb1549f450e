package mediaplayer

import "github.com/e7canasta/orion-media-player/internal/engine"

// Error is the single error type returned by the player.
type Error = engine.Error

// Kind identifies which operation failed.
type Kind = engine.Kind

// ErrorCategory classifies playback errors (network, codec, auth, resource).
type ErrorCategory = engine.ErrorCategory

const (
	KindInit          = engine.KindInit
	KindElementCreate = engine.KindElementCreate
	KindBinAdd        = engine.KindBinAdd
	KindElementLink   = engine.KindElementLink
	KindElementSync   = engine.KindElementSync
	KindStateChange   = engine.KindStateChange
	KindMessageParse  = engine.KindMessageParse
	KindPlayback      = engine.KindPlayback
	KindMissingURL    = engine.KindMissingURL
	KindInvalidVolume = engine.KindInvalidVolume
)

const (
	ErrCategoryUnknown  = engine.ErrCategoryUnknown
	ErrCategoryNetwork  = engine.ErrCategoryNetwork
	ErrCategoryCodec    = engine.ErrCategoryCodec
	ErrCategoryAuth     = engine.ErrCategoryAuth
	ErrCategoryResource = engine.ErrCategoryResource
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrInit          = engine.ErrInit
	ErrElementCreate = engine.ErrElementCreate
	ErrBinAdd        = engine.ErrBinAdd
	ErrElementLink   = engine.ErrElementLink
	ErrElementSync   = engine.ErrElementSync
	ErrStateChange   = engine.ErrStateChange
	ErrMessageParse  = engine.ErrMessageParse
	ErrPlayback      = engine.ErrPlayback
	ErrMissingURL    = engine.ErrMissingURL
	ErrInvalidVolume = engine.ErrInvalidVolume
)
