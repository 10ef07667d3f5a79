package datastores

import (
	"context"
	"fmt"
)

// ContactsService is the operation surface over a [ContactsStore].
// Contacts cross it by value so callers never alias stored records.
type ContactsService struct {
	Store ContactsStore
}

func NewContactsService(store ContactsStore) *ContactsService {
	return &ContactsService{Store: store}
}

// GetAll returns every contact in insertion order.
func (s *ContactsService) GetAll(ctx context.Context) ([]Contact, error) {
	contacts, err := s.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	all := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		all = append(all, *c)
	}
	return all, nil
}

// Get returns the contact with the given id or an error matching [ErrObjectNotFound].
func (s *ContactsService) Get(ctx context.Context, id ContactID) (Contact, error) {
	c, err := s.Store.Get(ctx, id)
	if err != nil {
		return Contact{}, fmt.Errorf("get contact %d: %w", id, err)
	}
	return *c, nil
}

// Add stores a copy of c under a new id, which is returned. c.ID is ignored.
func (s *ContactsService) Add(ctx context.Context, c Contact) (ContactID, error) {
	c.ID = 0
	id, err := s.Store.Create(ctx, &c)
	if err != nil {
		return 0, fmt.Errorf("add contact: %w", err)
	}
	return id, nil
}

// Delete removes the contact with the given id or returns an error matching [ErrObjectNotFound].
func (s *ContactsService) Delete(ctx context.Context, id ContactID) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete contact %d: %w", id, err)
	}
	return nil
}
