// Package oid implements the opaque entity identifier shared by jobs,
// schedules, templates and the department/user references they carry.
// An ID is 24 lowercase hex characters (12 random bytes).
package oid

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
)

const encodedLen = 24

type ID string

// Nil is the zero ID.
var Nil = ID("")

// New returns a freshly generated ID.
func New() ID {
	buf := make([]byte, encodedLen/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("oid: rand.Read: %v", err))
	}
	return ID(hex.EncodeToString(buf))
}

// Parse validates s and returns it as an ID.
func Parse(s string) (ID, error) {
	s = strings.ToLower(s)
	if len(s) != encodedLen {
		return Nil, fmt.Errorf("invalid id %q: must be %d hex characters", s, encodedLen)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(s), nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsNil() bool {
	return id == Nil
}

// Valid reports whether the ID has the expected 24-hex-char form.
func (id ID) Valid() bool {
	_, err := Parse(string(id))
	return err == nil
}

// Value implements driver.Valuer. Nil IDs are stored as SQL NULL so that
// unique indexes over optional references behave.
func (id ID) Value() (driver.Value, error) {
	if id.IsNil() {
		return nil, nil
	}
	return string(id), nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*id = Nil
		return nil
	case string:
		*id = ID(v)
		return nil
	case []byte:
		*id = ID(v)
		return nil
	default:
		return fmt.Errorf("oid: cannot scan %T", value)
	}
}
