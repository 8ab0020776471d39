package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// PutContact upsert-merges a contact. Fields absent or zero in the incoming
// record never clobber stored values; Phone is re-derived from the ID.
// Returns whether the record is new and whether anything changed.
func (s *Store) PutContact(ctx context.Context, c *Contact) (created, changed bool, err error) {
	var stored Contact
	exists, err := s.getJSON(ctx, contactKey(c.ID), &stored)
	if err != nil {
		return false, false, err
	}
	if !exists {
		stored = Contact{ID: c.ID}
	}
	if c.Name != "" {
		stored.Name = c.Name
	}
	if c.Photo != nil {
		stored.Photo = c.Photo
	}
	if c.CustomName != "" {
		stored.CustomName = c.CustomName
	}
	if c.Me {
		stored.Me = true
	}
	stored.Phone = PhoneFromID(c.ID)

	changed, err = s.putJSON(ctx, contactKey(c.ID), &stored)
	if err != nil {
		return false, false, err
	}
	return !exists, changed, nil
}

// GetContact returns a contact, or nil if unknown.
func (s *Store) GetContact(ctx context.Context, id string) (*Contact, error) {
	var c Contact
	ok, err := s.getJSON(ctx, contactKey(id), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// DeleteContact removes a contact. Removing an unknown contact is a no-op.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	return s.kv.Set(ctx, contactKey(id), nil)
}

// ListContacts returns contacts, most recently modified first.
func (s *Store) ListContacts(ctx context.Context, offset, limit int) ([]Contact, error) {
	recs, err := s.kv.List(ctx, "contact", offset, limit)
	if err != nil {
		return nil, err
	}
	contacts := make([]Contact, 0, len(recs))
	for _, rec := range recs {
		var c Contact
		if err := json.Unmarshal(rec.Value, &c); err != nil {
			return nil, fmt.Errorf("decode %q: %w", rec.Key, err)
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
