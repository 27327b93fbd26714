// internal/room/sequence.go
package room

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Seq is an ordered sequence as stored in a room document. Stores that treat
// arrays as index-keyed objects may hand it back as {"0":a,"1":b} or as an
// array with null holes; both decode into a dense slice in index order. Seq
// always encodes as a JSON array.
type Seq[T any] []T

func (s Seq[T]) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(s))
}

func (s *Seq[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	var raw []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(data, &keyed); err != nil {
			return err
		}
		type entry struct {
			idx int
			val json.RawMessage
		}
		entries := make([]entry, 0, len(keyed))
		for k, v := range keyed {
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 {
				return fmt.Errorf("sequence key %q is not an index", k)
			}
			entries = append(entries, entry{idx, v})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
		raw = make([]json.RawMessage, len(entries))
		for i, e := range entries {
			raw[i] = e.val
		}
	default:
		return fmt.Errorf("sequence must be an array or an index-keyed object, got %.20s", data)
	}

	out := make([]T, 0, len(raw))
	for _, r := range raw {
		if bytes.Equal(bytes.TrimSpace(r), []byte("null")) {
			continue
		}
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return err
		}
		out = append(out, v)
	}
	*s = out
	return nil
}
