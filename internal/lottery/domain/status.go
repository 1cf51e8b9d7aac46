package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Status is the lifecycle state of a registration. The numeric values are persisted.
type Status int

const (
	StatusPending Status = iota
	StatusProcessing
	StatusSuccess
	StatusFailed
)

var statusNames = [...]string{"Pending", "Processing", "Success", "Failed"}

// String returns the state name, or Status(n) for unknown values.
func (s Status) String() string {
	if s.Valid() {
		return statusNames[s]
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusFailed
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseStatus accepts the state name or its numeric form.
func ParseStatus(value string) (Status, error) {
	for i, name := range statusNames {
		if name == value {
			return Status(i), nil
		}
	}
	if n, err := strconv.Atoi(value); err == nil && Status(n).Valid() {
		return Status(n), nil
	}
	return 0, fmt.Errorf("unknown status %q", value)
}

// MarshalJSON encodes the state by name. Unknown values are an error.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the state name or its number.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseStatus(name)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status must be a name or a number: %w", err)
	}
	if !Status(n).Valid() {
		return fmt.Errorf("unknown status %d", n)
	}
	*s = Status(n)
	return nil
}
