// tilekit is the kit-side message and tile scheduling core: it owns one
// TileQueue/RenderDispatcher/Document per open document and exposes no
// transport of its own (the client protocol framing lives in the
// surrounding process, out of scope here). This binary wires
// configuration, logging, the document registry, and diagnostic signal
// handling, the same shape as the teacher's single-purpose daemon mains
// (e.g. sandbox-heartbeat).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CollaboraOnline/tilekit/internal/config"
	"github.com/CollaboraOnline/tilekit/internal/document"
	"github.com/CollaboraOnline/tilekit/internal/engine"
	"github.com/CollaboraOnline/tilekit/internal/imagecache"
)

// registry is the process-wide document table, keyed by document id.
// New documents are admitted by the (out-of-scope) transport layer
// calling open; this main only owns its lifecycle and diagnostics.
type registry struct {
	docs *xsync.MapOf[string, *document.Document]
}

func newRegistry() *registry {
	return &registry{docs: xsync.NewMapOf[string, *document.Document]()}
}

func (r *registry) open(ctx context.Context, id, uri string, eng engine.Engine, cfg config.Config) *document.Document {
	doc, loaded := r.docs.LoadOrStore(id, document.New(id, uri, log.Logger, eng, cfg.Cache.SoftBudgetBytes, imagecache.StdPNGEncoder))
	if !loaded {
		doc.StartDispatcher(ctx)
	}
	return doc
}

// dumpAll writes a diagnostic snapshot of every open document's queue,
// mirroring the original KitQueue::dumpState SIGUSR1 handler.
func (r *registry) dumpAll() {
	r.docs.Range(func(id string, doc *document.Document) bool {
		log.Info().Str("doc_id", id).Msg("dumping queue state")
		doc.Queue().DumpState(os.Stderr)
		return true
	})
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().
		Int("merge_budget_width", cfg.Queue.MergeBudgetWidth).
		Int("merge_budget_height", cfg.Queue.MergeBudgetHeight).
		Int("cache_soft_budget_bytes", cfg.Cache.SoftBudgetBytes).
		Msg("starting tilekit")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// reg.open is called by the transport layer as sessions attach to a
	// document; that layer is out of scope here (§1 Non-goals), so this
	// process otherwise just owns the registry's lifecycle and diagnostics.
	reg := newRegistry()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	for s := range sig {
		switch s {
		case syscall.SIGUSR1:
			reg.dumpAll()
		default:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			cancel()
			return
		}
	}
}
