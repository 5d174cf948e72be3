package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// slotPriority is the fixed order used when choosing which slot to ask about.
var slotPriority = []string{"service_name", "department", "user_type", "tags"}

// SlotState tracks which disambiguation slots have been filled so they can be
// reused across tools and prompts. Reset per disambiguation session.
type SlotState struct {
	slots map[string]string
}

func NewSlotState() *SlotState {
	s := &SlotState{}
	s.Reset()
	return s
}

// Reset clears every slot back to unfilled.
func (s *SlotState) Reset() {
	s.slots = map[string]string{
		"service_name": "",
		"department":   "",
		"user_type":    "",
		"tags":         "",
	}
}

// Get returns the value of a slot, empty when unfilled or unknown.
func (s *SlotState) Get(name string) string {
	return s.slots[name]
}

// Filled reports whether the named slot holds a value.
func (s *SlotState) Filled(name string) bool {
	return s.slots[name] != ""
}

// Missing lists unfilled slot names in priority order.
func (s *SlotState) Missing() []string {
	var missing []string
	for _, name := range slotPriority {
		if s.slots[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// UpdateFromCandidate copies every non-empty slot field from the candidate.
func (s *SlotState) UpdateFromCandidate(c Candidate) {
	if c.ServiceName != "" {
		s.slots["service_name"] = c.ServiceName
	}
	if c.Department != "" {
		s.slots["department"] = c.Department
	}
	if c.UserType != "" {
		s.slots["user_type"] = c.UserType
	}
	if c.Tags != "" {
		s.slots["tags"] = c.Tags
	}
}

// StatusText summarises the slot state for prompt injection.
func (s *SlotState) StatusText() string {
	var filled []string
	for _, name := range slotPriority {
		if v := s.slots[name]; v != "" {
			filled = append(filled, fmt.Sprintf("%s=%s", name, v))
		}
	}
	sort.Strings(filled)
	return fmt.Sprintf("Slots filled: [%s]. Slots missing: [%s].",
		strings.Join(filled, ", "), strings.Join(s.Missing(), ", "))
}
