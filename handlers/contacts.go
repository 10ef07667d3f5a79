package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/oaiiae/contacts-api/datastores"
)

type Contacts struct {
	Service      *ds.ContactsService
	ErrorHandler func(context.Context, error)
	// Prefix is prepended to the Location of created contacts.
	Prefix string
}

type ContactModel struct {
	ID ds.ContactID `json:"id" readOnly:"true" example:"1"`

	Name    string `json:"name"    required:"false" example:"Person One"`
	Address string `json:"address" required:"false" example:"1 Main St"`
	City    string `json:"city"    required:"false" example:"Test"`
}

func contactModel(c ds.Contact) ContactModel {
	return ContactModel{ID: c.ID, Name: c.Name, Address: c.Address, City: c.City}
}

func (h *Contacts) RegisterList(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/contacts",
		handlerWithErrorHandler(h.list, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
}

type ContactsListOutput struct {
	Body []ContactModel
}

func (h *Contacts) list(ctx context.Context, _ *struct{}) (*ContactsListOutput, error) {
	contacts, err := h.Service.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	body := make([]ContactModel, 0, len(contacts))
	for _, contact := range contacts {
		body = append(body, contactModel(contact))
	}

	return &ContactsListOutput{Body: body}, nil
}

func (h *Contacts) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/contacts/{id}",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opErrors(http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError),
	)
}

type ContactsGetOutput struct {
	Body ContactModel
}

func (h *Contacts) get(ctx context.Context, input *struct {
	ID string `path:"id" example:"1" doc:"ID of the contact to get"`
}) (*ContactsGetOutput, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	contact, err := h.Service.Get(ctx, id)
	switch {
	case err == nil:
		return &ContactsGetOutput{Body: contactModel(contact)}, nil

	case errors.Is(err, ds.ErrObjectNotFound):
		return nil, huma.Error404NotFound("id not found", err)

	default:
		return nil, err
	}
}

// RegisterCreate registers POST /contacts. The body is decoded by the
// handler rather than by huma, so that a malformed or mistyped body is a 400
// instead of a 422 validation error.
func (h *Contacts) RegisterCreate(api huma.API) { // called by [huma.AutoRegister]
	huma.Post(api, "/contacts",
		handlerWithErrorHandler(h.create, h.ErrorHandler),
		opStatus(http.StatusCreated),
		opErrors(http.StatusBadRequest, http.StatusInternalServerError),
		opJSONBody(api, reflect.TypeFor[ContactModel]()),
	)
}

// contactInput is the writable part of [ContactModel]; a client supplied id
// is ignored.
type contactInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

type ContactsCreateOutput struct {
	Location string `header:"Location" doc:"URL of the created contact"`
}

func (h *Contacts) create(ctx context.Context, input *struct {
	RawBody []byte `contentType:"application/json"`
}) (*ContactsCreateOutput, error) {
	var body contactInput
	if err := json.Unmarshal(input.RawBody, &body); err != nil {
		return nil, huma.Error400BadRequest("malformed contact", err)
	}

	id, err := h.Service.Add(ctx, ds.Contact{
		Name:    body.Name,
		Address: body.Address,
		City:    body.City,
	})
	if err != nil {
		return nil, err
	}

	return &ContactsCreateOutput{Location: h.Prefix + "/contacts/" + strconv.Itoa(id)}, nil
}

func (h *Contacts) RegisterDelete(api huma.API) { // called by [huma.AutoRegister]
	huma.Delete(api, "/contacts/{id}",
		handlerWithErrorHandler(h.del, h.ErrorHandler),
		opErrors(http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError),
	)
}

func (h *Contacts) del(ctx context.Context, input *struct {
	ID string `path:"id" example:"1" doc:"ID of the contact to delete"`
}) (*struct{}, error) {
	id, err := parseID(input.ID)
	if err != nil {
		return nil, err
	}

	err = h.Service.Delete(ctx, id)
	switch {
	case err == nil:
		return nil, nil

	case errors.Is(err, ds.ErrObjectNotFound):
		return nil, huma.Error404NotFound("id not found", err)

	default:
		return nil, err
	}
}
