package cli

import (
	"sort"
	"time"
)

// Document is the object ringctl keeps in the ring: a flat string map plus
// the bookkeeping the ring needs.
type Document struct {
	Seq       uint64            `json:"sequence_number" yaml:"sequence_number"`
	Writer    string            `json:"writer,omitempty" yaml:"writer,omitempty"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
	Values    map[string]string `json:"values" yaml:"values"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Values: map[string]string{}}
}

// SequenceNumber implements ringstore.Object.
func (d *Document) SequenceNumber() uint64 { return d.Seq }

// SetSequenceNumber implements ringstore.Object.
func (d *Document) SetSequenceNumber(n uint64) { d.Seq = n }

// Set stores value under key.
func (d *Document) Set(key, value string) {
	if d.Values == nil {
		d.Values = map[string]string{}
	}

	d.Values[key] = value
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (string, bool) {
	v, ok := d.Values[key]

	return v, ok
}

// Delete removes key. It reports whether the key was present.
func (d *Document) Delete(key string) bool {
	if _, ok := d.Values[key]; !ok {
		return false
	}

	delete(d.Values, key)

	return true
}

// Keys returns the keys in sorted order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Values))
	for k := range d.Values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// stamp records who touched the document and when.
func (d *Document) stamp(writer string, now time.Time) {
	d.Writer = writer
	d.UpdatedAt = now.UTC().Truncate(time.Second)
}
