package domain

import "fmt"

// Tag is the MSI coherence state of a page.
type Tag uint8

const (
	TagInvalid  Tag = iota // No usable local copy. Initial state of every page.
	TagShared              // Valid read-only copy; the peer may hold one too.
	TagModified            // Valid exclusive copy; the peer must not hold one.
)

func (t Tag) String() string {
	switch t {
	case TagInvalid:
		return "Invalid"
	case TagShared:
		return "Shared"
	case TagModified:
		return "Modified"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// IsValid returns true if the local copy can be read.
func (t Tag) IsValid() bool {
	return t == TagShared || t == TagModified
}

// CanWrite returns true if this node holds the page exclusively.
func (t Tag) CanWrite() bool {
	return t == TagModified
}

// Known reports whether t is one of the three MSI states.
func (t Tag) Known() bool {
	return t <= TagModified
}

// ParseTag converts the string form (or its first letter) back to a Tag.
func ParseTag(s string) (Tag, error) {
	switch s {
	case "Invalid", "invalid", "I":
		return TagInvalid, nil
	case "Shared", "shared", "S":
		return TagShared, nil
	case "Modified", "modified", "M":
		return TagModified, nil
	}
	return TagInvalid, fmt.Errorf("unknown tag %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(b []byte) error {
	parsed, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
