package handlers

import (
	"context"
	"reflect"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/oaiiae/contacts-api/datastores"
)

type handler[I, O any] = func(context.Context, *I) (*O, error)

func handlerWithErrorHandler[I, O any](handler handler[I, O], do func(context.Context, error)) handler[I, O] {
	if do == nil {
		return handler
	}

	return func(ctx context.Context, i *I) (*O, error) {
		o, err := handler(ctx, i)
		if err != nil {
			do(ctx, err)
		}
		return o, err
	}
}

func opErrors(codes ...int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.Errors = codes }
}

func opStatus(code int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.DefaultStatus = code }
}

// opJSONBody documents a JSON request body of type t for operations that
// read it through RawBody.
func opJSONBody(api huma.API, t reflect.Type) func(*huma.Operation) {
	return func(o *huma.Operation) {
		o.RequestBody = &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {Schema: api.OpenAPI().Components.Schemas.Schema(t, true, t.Name())},
			},
		}
	}
}

// parseID parses an id path parameter, rejecting anything but a base 10 integer with a 400.
func parseID(s string) (ds.ContactID, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, huma.Error400BadRequest("id must be an integer", err)
	}
	return id, nil
}
