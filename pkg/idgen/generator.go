package idgen

import (
	"fmt"
	"strings"
)

// Generator produces opaque identifiers for rooms and participants.
type Generator interface {
	Generate() (string, error)
	// Validate returns nil when id could have been produced by this generator.
	Validate(id string) error
	Format() string
}

const (
	FormatUUID   = "uuid"
	FormatNanoID = "nanoid"
	FormatULID   = "ulid"
	FormatKSUID  = "ksuid"
)

// New returns the generator for format. An empty format means uuid.
func New(format string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatUUID:
		return NewUUIDGenerator(), nil
	case FormatNanoID:
		return NewNanoIDGenerator(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case FormatULID:
		return NewULIDGenerator(), nil
	case FormatKSUID:
		return NewKSUIDGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported id format %q", format)
	}
}

// Must is New that panics; for wiring constants at startup.
func Must(format string) Generator {
	g, err := New(format)
	if err != nil {
		panic(err)
	}
	return g
}
