package database

import "maps"

// Fields is the raw content of a document as it is written to or read from
// a backend.
type Fields map[string]any

// Snapshot is one document as seen by a backend at a point in time.
type Snapshot struct {
	ID   string
	Data Fields
}

// Clone returns a deep copy of f. Nested maps and slices are copied so the
// result can be mutated without touching the original.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge deep-merges patch into f: nested maps are merged key by key, every
// other value is replaced.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	if out == nil {
		out = Fields{}
	}
	for k, v := range patch {
		cur, curOK := asMap(out[k])
		next, nextOK := asMap(v)
		if curOK && nextOK {
			out[k] = map[string]any(Fields(cur).Merge(Fields(next)))
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Fields:
		return m, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Fields(t).Clone())
	case Fields:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// withID returns a copy of data annotated with the document identifier.
func withID(data Fields, id string) Fields {
	out := maps.Clone(data)
	if out == nil {
		out = Fields{}
	}
	out["id"] = id
	return out
}
