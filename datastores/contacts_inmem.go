package datastores

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// IDPolicy decides the id given to the next created contact.
type IDPolicy int

const (
	// IDMonotonic never hands out an id twice, even after deletions.
	IDMonotonic IDPolicy = iota
	// IDLastPlusOne uses the id of the last contact plus one, so deleting
	// the tail makes its id available again.
	IDLastPlusOne
)

// ParseIDPolicy parses "monotonic" or "last".
func ParseIDPolicy(s string) (IDPolicy, error) {
	switch strings.ToLower(s) {
	case "", "monotonic":
		return IDMonotonic, nil
	case "last":
		return IDLastPlusOne, nil
	default:
		return 0, fmt.Errorf("unknown id policy %q", s)
	}
}

func (p IDPolicy) String() string {
	if p == IDLastPlusOne {
		return "last"
	}
	return "monotonic"
}

// ContactsInmem implements [ContactsStore].
type ContactsInmem struct {
	mu       sync.Mutex
	policy   IDPolicy
	next     ContactID
	contacts []*Contact
}

var _ ContactsStore = (*ContactsInmem)(nil)

// NewContactsInmem returns a store holding cs in the given order.
// Seeded contacts keep their ids; a zero id is replaced with a fresh one.
func NewContactsInmem(policy IDPolicy, cs ...*Contact) *ContactsInmem {
	s := &ContactsInmem{policy: policy, next: 1, contacts: make([]*Contact, 0, len(cs))}
	for _, c := range cs {
		c := *c
		if c.ID == 0 || s.indexOf(c.ID) >= 0 {
			c.ID = s.next
		}
		s.next = max(s.next, c.ID+1)
		s.contacts = append(s.contacts, &c)
	}
	return s
}

// nextID must be called with mu held.
func (s *ContactsInmem) nextID() ContactID {
	if s.policy == IDLastPlusOne {
		if len(s.contacts) == 0 {
			return 1
		}
		return s.contacts[len(s.contacts)-1].ID + 1
	}
	return s.next
}

// indexOf must be called with mu held.
func (s *ContactsInmem) indexOf(id ContactID) int {
	return slices.IndexFunc(s.contacts, func(c *Contact) bool { return c.ID == id })
}

func (s *ContactsInmem) Create(ctx context.Context, c *Contact) (ContactID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *c
	created.ID = s.nextID()
	s.next = max(s.next, created.ID+1)
	s.contacts = append(s.contacts, &created)
	return created.ID, nil
}

func (s *ContactsInmem) List(ctx context.Context) ([]*Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	contacts := make([]*Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		c := *c
		contacts = append(contacts, &c)
	}
	return contacts, nil
}

func (s *ContactsInmem) Get(ctx context.Context, id ContactID) (*Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.indexOf(id)
	if index < 0 {
		return nil, ErrObjectNotFound
	}
	c := *s.contacts[index]
	return &c, nil
}

func (s *ContactsInmem) Delete(ctx context.Context, id ContactID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index := s.indexOf(id)
	if index < 0 {
		return ErrObjectNotFound
	}
	s.contacts = slices.Delete(s.contacts, index, index+1)
	return nil
}
