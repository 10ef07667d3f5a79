package datastores

// SeedContacts returns the contacts a fresh server starts with.
func SeedContacts() []*Contact {
	return []*Contact{
		{ID: 1, Name: "Person One", Address: "1 Main St", City: "Test"},
		{ID: 2, Name: "Person Two", Address: "2 Main St", City: "Test"},
		{ID: 3, Name: "Person Three", Address: "3 Main St", City: "Test"},
		{ID: 4, Name: "Person Four", Address: "4 Main St", City: "Test"},
		{ID: 5, Name: "Person Five", Address: "5 Main St", City: "Test"},
	}
}
