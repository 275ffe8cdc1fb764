// Package logctx builds zerolog loggers pre-populated with the document/
// session/view identifiers most tilekit log lines need, mirroring the
// teacher's scheduler.withWorkContext helper.
package logctx

import "github.com/rs/zerolog"

// ForDocument returns a logger scoped to one document.
func ForDocument(base *zerolog.Logger, docID string) zerolog.Logger {
	return base.With().Str("doc_id", docID).Logger()
}

// ForSession extends a document-scoped logger with session/view fields.
func ForSession(base zerolog.Logger, sessionID string, viewID int) zerolog.Logger {
	return base.With().Str("session_id", sessionID).Int("view_id", viewID).Logger()
}

// ForTile extends a logger with a tile's key fields. No package in the
// module calls it; queue coalescing decisions are not logged.
func ForTile(base zerolog.Logger, part, x, y, w, h int) zerolog.Logger {
	return base.With().
		Int("part", part).
		Int("tile_x", x).
		Int("tile_y", y).
		Int("tile_w", w).
		Int("tile_h", h).
		Logger()
}
