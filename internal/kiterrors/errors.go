// Package kiterrors classifies the error taxonomy of spec.md §7 and
// decides, per error, whether the dispatcher drops the request, the
// session is refused, or the process must exit — the same shape as the teacher's
// scheduler.ErrorHandlingStrategy.
package kiterrors

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrProtocol marks a malformed or unknown message: log and discard,
	// never disconnect (§7 Protocol).
	ErrProtocol = errors.New("kiterrors: malformed or unknown message")

	// ErrRenderFailed marks a tile render or encode failure: log and drop
	// the offending request (§7 Engine / Resource).
	ErrRenderFailed = errors.New("kiterrors: render failed")

	// ErrLoadFailed marks a document load failure: reply
	// "faileddocloading" and refuse the session (§7 Engine).
	ErrLoadFailed = errors.New("kiterrors: document load failed")

	// ErrSessionNotFound marks routing to a session id the document no
	// longer knows about: log and drop (§4.3 Failure semantics).
	ErrSessionNotFound = errors.New("kiterrors: session not found")

	// ErrFatal marks an unrecoverable engine/process condition: the
	// process exits and the supervisor respawns (§7 Fatal).
	ErrFatal = errors.New("kiterrors: fatal engine condition")
)

// Disposition is what the dispatcher should do after classifying an
// error.
type Disposition int

const (
	// DispositionDropAndContinue logs the error and moves on; the
	// document keeps running (§7 "Local recovery is the default").
	DispositionDropAndContinue Disposition = iota
	// DispositionRefuseSession reports a load failure to the originating
	// session and does not admit it.
	DispositionRefuseSession
	// DispositionFatal means the process should exit; only unrecoverable
	// engine state reaches this.
	DispositionFatal
)

// Classify decides the Disposition for err and logs it at the
// appropriate level, mirroring the teacher's ErrorHandlingStrategy.
func Classify(log zerolog.Logger, err error) Disposition {
	switch {
	case errors.Is(err, ErrFatal):
		log.Error().Err(err).Msg("fatal engine condition, process will exit")
		return DispositionFatal
	case errors.Is(err, ErrLoadFailed):
		log.Warn().Err(err).Msg("document load failed")
		return DispositionRefuseSession
	case errors.Is(err, ErrRenderFailed):
		log.Warn().Err(err).Msg("render failed, dropping request")
		return DispositionDropAndContinue
	case errors.Is(err, ErrSessionNotFound):
		log.Warn().Err(err).Msg("session not found, dropping message")
		return DispositionDropAndContinue
	case errors.Is(err, ErrProtocol):
		log.Warn().Err(err).Msg("malformed or unknown message, discarding")
		return DispositionDropAndContinue
	default:
		log.Error().Err(err).Msg("unclassified error, treating as recoverable")
		return DispositionDropAndContinue
	}
}

// Wrap annotates err with one of the sentinel categories above, the way
// %w-wrapping is used throughout the teacher's codebase.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
