package store

import (
	"sort"

	"conti/internal/core"
)

// Clone returns a deep-enough copy: the field map is copied, values are
// shared. Adapters and the cache patch path use it so cached payloads are
// never aliased with store internals.
func (d Document) Clone() Document {
	fields := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return Document{ID: d.ID, Fields: fields}
}

// Merge returns a copy of the document with the partial fields applied on
// top, the same merge semantics the remote store uses for updates.
func (d Document) Merge(fields map[string]any) Document {
	merged := d.Clone()
	for k, v := range fields {
		merged.Fields[k] = v
	}
	return merged
}

// Int64Field reads a numeric field, tolerating the integer representations
// that survive the various adapters (int, int64, float64 from JSON).
func (d Document) Int64Field(field string) int64 {
	switch v := d.Fields[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// SortByDateDesc orders documents by the date field descending, the
// designated ordering of every read path. Ties keep a stable order by ID so
// results are deterministic across adapters.
func SortByDateDesc(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		di, _ := docs[i].Fields[core.FieldDate].(string)
		dj, _ := docs[j].Fields[core.FieldDate].(string)
		if di != dj {
			return di > dj
		}
		return docs[i].ID > docs[j].ID
	})
}
