package datastores

import (
	"context"
	"errors"
)

type (
	ContactID = int
	Contact   struct {
		ID      ContactID
		Name    string
		Address string
		City    string
	}
)

// ContactsStore is the ordered collection of contacts.
// Implementations assign ids on [ContactsStore.Create] and keep insertion order.
type ContactsStore interface {
	Create(context.Context, *Contact) (ContactID, error)
	List(context.Context) ([]*Contact, error)
	Get(context.Context, ContactID) (*Contact, error)
	Delete(context.Context, ContactID) error
}

var ErrObjectNotFound = errors.New("store: object not found")
