// Package appctx wires the proxy's dependencies (config, cluster client,
// authenticator, profile store, metrics) into an explicit context threaded
// through request handlers — no package-level singletons (spec.md §9).
package appctx

import (
	"log/slog"

	"github.com/kbatch-dev/kbatch-proxy/internal/auth"
	"github.com/kbatch-dev/kbatch-proxy/internal/cluster"
	"github.com/kbatch-dev/kbatch-proxy/internal/config"
	"github.com/kbatch-dev/kbatch-proxy/internal/metrics"
	"github.com/kbatch-dev/kbatch-proxy/internal/profilestore"
)

// AppContext bundles everything an HTTP handler needs to serve a request.
type AppContext struct {
	Config        *config.Config
	Profiles      *profilestore.Store
	Authenticator *auth.Authenticator
	Client        cluster.Client
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}
