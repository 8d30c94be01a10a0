// Package advisor exposes the recommendation engine over HTTP. It depends on
// the catalog plugin for candidate data and owns no schema of its own.
package advisor

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"imagescout/internal/plugin"
	"imagescout/internal/recommend"
)

// Advisor is the recommendation plugin.
type Advisor struct {
	source recommend.CandidateSource
	engine *recommend.Engine
	logger *zap.Logger

	// defaultLimit caps results per request when the caller does not ask
	// for a specific count. 0 means unlimited.
	defaultLimit int
}

// New creates the advisor plugin reading candidates from the given source.
func New(source recommend.CandidateSource) *Advisor {
	return &Advisor{source: source}
}

func (a *Advisor) Name() string    { return "advisor" }
func (a *Advisor) Version() string { return "1.0.0" }

// Init builds the engine. The plugin config may set "default_limit" to cap
// the number of recommendations returned per request.
func (a *Advisor) Init(config *viper.Viper, logger *zap.Logger) error {
	if a.source == nil {
		return fmt.Errorf("advisor requires a candidate source")
	}

	a.logger = logger
	a.defaultLimit = config.GetInt("default_limit")
	a.engine = recommend.NewEngine(a.source, logger)
	return nil
}

func (a *Advisor) Start(_ context.Context) error { return nil }
func (a *Advisor) Stop() error                   { return nil }

// Engine exposes the recommendation engine for the CLI.
func (a *Advisor) Engine() *recommend.Engine {
	return a.engine
}

// Routes returns the advisor HTTP surface, mounted by the server under
// /api/v1/advisor.
func (a *Advisor) Routes() []plugin.Route {
	h := &handler{advisor: a, logger: a.logger}
	return []plugin.Route{
		{Method: "POST", Path: "/recommend", Handler: h.recommend},
		{Method: "POST", Path: "/analyze", Handler: h.analyze},
	}
}
