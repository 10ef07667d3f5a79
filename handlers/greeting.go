package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

type Greeting struct{}

// GreetingOutput is a plain text greeting.
type GreetingOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func textOutput(s string) *GreetingOutput {
	return &GreetingOutput{ContentType: "text/plain; charset=utf-8", Body: []byte(s)}
}

// RegisterRoot registers GET /. The net/http mux routes every unmatched GET
// path to it, so anything but the mounted root answers 404.
func (h *Greeting) RegisterRoot(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/", h.root, func(o *huma.Operation) {
		o.Middlewares = append(o.Middlewares, exactPath(api))
	})
}

// exactPath rejects requests whose path is not the operation path itself.
func exactPath(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if ctx.URL().Path != ctx.Operation().Path {
			_ = huma.WriteErr(api, ctx, http.StatusNotFound, "no such resource")
			return
		}
		next(ctx)
	}
}

func (h *Greeting) root(context.Context, *struct{}) (*GreetingOutput, error) {
	return textOutput("Hello world!"), nil
}

func (h *Greeting) RegisterHello(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/hello/{name}", h.hello)
}

func (h *Greeting) hello(_ context.Context, input *struct {
	Name string `path:"name" example:"world" doc:"Name to greet"`
}) (*GreetingOutput, error) {
	return textOutput("Hello, " + input.Name), nil
}
