package editor

import (
	"fmt"

	"birthday-templates/core"
)

// PersonUpdate is a partial person entry update. ClearBirthdate removes
// the birthdate and wins over Birthdate.
type PersonUpdate struct {
	Name           *string `json:"name,omitempty"`
	Birthdate      *Date   `json:"birthdate,omitempty"`
	ClearBirthdate bool    `json:"clearBirthdate,omitempty"`
}

// AddPerson appends a blank entry with a fresh id.
func AddPerson(s State) (State, PersonEntry) {
	p := newPerson()
	s = s.clone()
	s.People = append(s.People, p)
	return s, p
}

// UpdatePerson applies u to the entry with the given id.
func UpdatePerson(s State, id string, u PersonUpdate) (State, error) {
	idx := s.personIndex(id)
	if idx < 0 {
		return s, fmt.Errorf("person %s: %w", id, core.ErrNotFound)
	}
	s = s.clone()
	p := &s.People[idx]
	if u.Name != nil {
		p.Name = *u.Name
	}
	switch {
	case u.ClearBirthdate:
		p.Birthdate = nil
	case u.Birthdate != nil:
		d := *u.Birthdate
		p.Birthdate = &d
	}
	return s, nil
}

// RemovePerson deletes the entry with the given id. The last remaining
// entry cannot be removed; the returned error then wraps
// core.ErrConstraintViolation and the state is unchanged.
func RemovePerson(s State, id string) (State, error) {
	idx := s.personIndex(id)
	if idx < 0 {
		return s, fmt.Errorf("person %s: %w", id, core.ErrNotFound)
	}
	if len(s.People) <= 1 {
		return s, fmt.Errorf("remove last person entry: %w", core.ErrConstraintViolation)
	}
	s = s.clone()
	s.People = append(s.People[:idx], s.People[idx+1:]...)
	return s, nil
}

func (s State) personIndex(id string) int {
	for i, p := range s.People {
		if p.ID == id {
			return i
		}
	}
	return -1
}
