package router

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
)

// New returns a mux serving liveness, readiness, metrics and the huma API built by opts.
// Options are applied in order, so middlewares must come before the
// operations they wrap.
func New(
	title, version string,
	readiness http.HandlerFunc,
	writeMetrics http.HandlerFunc,
	opts ...func(huma.API),
) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /liveness", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("GET /readiness", readiness)
	mux.HandleFunc("GET /metrics", writeMetrics)

	api := humago.New(mux, NewConfig(title, version))
	for _, opt := range opts {
		opt(api)
	}

	return mux
}

// NewConfig returns the huma defaults without the create hooks, so response
// bodies carry no $schema field and no describedBy Link header.
func NewConfig(title, version string) huma.Config {
	config := huma.DefaultConfig(title, version)
	config.CreateHooks = nil
	return config
}

// OptUseMiddleware adds middlewares to every operation registered afterwards.
func OptUseMiddleware(middlewares ...func(huma.Context, func(huma.Context))) func(huma.API) {
	return func(api huma.API) { api.UseMiddleware(middlewares...) }
}

// OptGroup applies opts to a group mounted at prefix. An empty prefix
// groups operations without moving them.
func OptGroup(prefix string, opts ...func(huma.API)) func(huma.API) {
	return func(api huma.API) {
		var group *huma.Group
		if prefix == "" {
			group = huma.NewGroup(api)
		} else {
			group = huma.NewGroup(api, prefix)
		}
		for _, opt := range opts {
			opt(group)
		}
	}
}

// OptAutoRegister registers the operations of server, see [huma.AutoRegister].
func OptAutoRegister(server any) func(huma.API) {
	return func(api huma.API) { huma.AutoRegister(api, server) }
}
