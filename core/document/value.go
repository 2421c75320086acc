// Package document models an analysis document as a closed set of tagged
// variants: Mapping, Sequence, String, Number, Bool and Null.
package document

import (
	"sort"
)

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (kind Kind) String() string {
	switch kind {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Value is one node of a document tree. The set of implementations is closed.
type Value interface {
	Kind() Kind
	sealed()
}

type Null struct{}

type Bool bool

// Number keeps the exact JSON literal it was decoded from.
type Number string

type String string

// Sequence and Mapping are reference nodes so visitors can rewrite them in place.
type Sequence struct {
	items []Value
}

type Mapping struct {
	entries map[string]Value
}

func (Null) Kind() Kind      { return KindNull }
func (Bool) Kind() Kind      { return KindBool }
func (Number) Kind() Kind    { return KindNumber }
func (String) Kind() Kind    { return KindString }
func (*Sequence) Kind() Kind { return KindSequence }
func (*Mapping) Kind() Kind  { return KindMapping }

func (Null) sealed()      {}
func (Bool) sealed()      {}
func (Number) sealed()    {}
func (String) sealed()    {}
func (*Sequence) sealed() {}
func (*Mapping) sealed()  {}

func NewSequence(items ...Value) *Sequence {
	copied := make([]Value, 0, len(items))
	for _, item := range items {
		copied = append(copied, orNull(item))
	}
	return &Sequence{items: copied}
}

func (sequence *Sequence) Len() int {
	if sequence == nil {
		return 0
	}
	return len(sequence.items)
}

func (sequence *Sequence) At(index int) Value {
	return sequence.items[index]
}

func (sequence *Sequence) Set(index int, value Value) {
	sequence.items[index] = orNull(value)
}

func (sequence *Sequence) Append(values ...Value) {
	for _, value := range values {
		sequence.items = append(sequence.items, orNull(value))
	}
}

// Items returns a copy of the element slice.
func (sequence *Sequence) Items() []Value {
	if sequence == nil {
		return nil
	}
	return append([]Value(nil), sequence.items...)
}

// Retain keeps the elements for which keep returns true. keep receives the
// element's index from before any removal.
func (sequence *Sequence) Retain(keep func(index int, value Value) bool) int {
	kept := sequence.items[:0]
	removed := 0
	for index, item := range sequence.items {
		if keep(index, item) {
			kept = append(kept, item)
			continue
		}
		removed++
	}
	for index := len(kept); index < len(sequence.items); index++ {
		sequence.items[index] = nil
	}
	sequence.items = kept
	return removed
}

func NewMapping() *Mapping {
	return &Mapping{entries: map[string]Value{}}
}

func (mapping *Mapping) Len() int {
	if mapping == nil {
		return 0
	}
	return len(mapping.entries)
}

func (mapping *Mapping) Get(key string) (Value, bool) {
	if mapping == nil {
		return nil, false
	}
	value, ok := mapping.entries[key]
	return value, ok
}

func (mapping *Mapping) Has(key string) bool {
	_, ok := mapping.Get(key)
	return ok
}

func (mapping *Mapping) Set(key string, value Value) {
	if mapping.entries == nil {
		mapping.entries = map[string]Value{}
	}
	mapping.entries[key] = orNull(value)
}

func (mapping *Mapping) Delete(key string) {
	delete(mapping.entries, key)
}

// Keys returns the mapping keys in sorted order.
func (mapping *Mapping) Keys() []string {
	if mapping == nil {
		return nil
	}
	keys := make([]string, 0, len(mapping.entries))
	for key := range mapping.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (mapping *Mapping) StringField(key string) (string, bool) {
	value, ok := mapping.Get(key)
	if !ok {
		return "", false
	}
	text, ok := value.(String)
	return string(text), ok
}

func (mapping *Mapping) MappingField(key string) (*Mapping, bool) {
	value, ok := mapping.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := value.(*Mapping)
	return nested, ok
}

func (mapping *Mapping) SequenceField(key string) (*Sequence, bool) {
	value, ok := mapping.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := value.(*Sequence)
	return nested, ok
}

// Clone returns a deep copy of value.
func Clone(value Value) Value {
	switch typed := value.(type) {
	case *Mapping:
		if typed == nil {
			return Null{}
		}
		copied := &Mapping{entries: make(map[string]Value, len(typed.entries))}
		for key, entry := range typed.entries {
			copied.entries[key] = Clone(entry)
		}
		return copied
	case *Sequence:
		if typed == nil {
			return Null{}
		}
		copied := &Sequence{items: make([]Value, 0, len(typed.items))}
		for _, item := range typed.items {
			copied.items = append(copied.items, Clone(item))
		}
		return copied
	case nil:
		return Null{}
	default:
		return typed
	}
}

func IsNull(value Value) bool {
	if value == nil {
		return true
	}
	switch typed := value.(type) {
	case Null:
		return true
	case *Mapping:
		return typed == nil
	case *Sequence:
		return typed == nil
	}
	return false
}

func orNull(value Value) Value {
	if IsNull(value) {
		return Null{}
	}
	return value
}
