package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if v7 fails
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// PlotID identifies a density accumulator inside a stack
type PlotID ID

func (id PlotID) String() string { return ID(id).String() }

// NewPlotID creates a fresh plot identifier
func NewPlotID() PlotID {
	return PlotID(NewID())
}

// ParsePlotID parses a string into PlotID
func ParsePlotID(s string) (PlotID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("plot ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid plot ID %q: %w", s, err)
	}
	return PlotID(s), nil
}
