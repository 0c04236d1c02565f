package graph

import "encoding/json"

// State is the shared mutable data flowing through a graph execution.
// Keys are arbitrary strings; values are arbitrary JSON-compatible data.
type State map[string]any

// Clone returns a deep copy of the state. The copy goes through JSON so
// nested maps and slices do not alias the original. Values that do not
// survive a JSON round trip (functions, channels) are copied by reference.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}

	data, err := json.Marshal(s)
	if err != nil {
		// Fall back to a shallow copy for non-serializable values
		out := make(State, len(s))
		for k, v := range s {
			out[k] = v
		}
		return out
	}

	out := make(State, len(s))
	if err := json.Unmarshal(data, &out); err != nil {
		out = make(State, len(s))
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// Merge applies delta onto the state in place, overwriting existing keys.
func (s State) Merge(delta State) {
	for k, v := range delta {
		s[k] = v
	}
}

// Get retrieves a value by key.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// GetString retrieves a string value by key. Returns "" if the key is
// missing or the value is not a string.
func (s State) GetString(key string) string {
	v, ok := s[key]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return str
}
