package model

import "encoding/json"

// IDSet is an insertion-ordered set of ids. The zero value is an empty set.
type IDSet struct {
	ids []int64
}

// NewIDSet builds a set from ids, dropping repeats.
func NewIDSet(ids ...int64) IDSet {
	var s IDSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether it was missing.
func (s *IDSet) Add(id int64) bool {
	if s.Contains(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

func (s IDSet) Contains(id int64) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s IDSet) Len() int { return len(s.ids) }

// Slice returns the ids in insertion order. The result is a copy.
func (s IDSet) Slice() []int64 {
	return append([]int64(nil), s.ids...)
}

func (s IDSet) Clone() IDSet {
	if s.ids == nil {
		return IDSet{}
	}
	return IDSet{ids: s.Slice()}
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	if s.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.ids)
}

// UnmarshalJSON accepts null or an array; repeated ids collapse.
func (s *IDSet) UnmarshalJSON(b []byte) error {
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}
