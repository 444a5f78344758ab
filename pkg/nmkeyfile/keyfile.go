// Package nmkeyfile models NetworkManager keyfile documents.
//
// A keyfile is a line-oriented ini-style document whose section and key
// order is meaningful to readers and diff tools, so the document preserves
// insertion order and writes values verbatim.
package nmkeyfile

import (
	"bytes"
	"fmt"
)

// KV is a single key=value line inside a section.
type KV struct {
	Key   string
	Value string
}

// Section is a named group of key=value lines.
type Section struct {
	Name string
	Keys []KV
}

// Document is an ordered sequence of sections.
type Document struct {
	sections []*Section
}

// New creates an empty document.
func New() *Document {
	return &Document{}
}

// AddSection appends a section and returns it for key population.
func (d *Document) AddSection(name string) *Section {
	s := &Section{Name: name}
	d.sections = append(d.sections, s)
	return s
}

// Set appends a key=value line to the section.
func (s *Section) Set(key, value string) *Section {
	s.Keys = append(s.Keys, KV{Key: key, Value: value})
	return s
}

// Section returns the first section with the given name, or nil.
func (d *Document) Section(name string) *Section {
	for _, s := range d.sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Get returns the first value for key in the named section. The second
// return reports whether the section and key exist.
func (d *Document) Get(section, key string) (string, bool) {
	s := d.Section(section)
	if s == nil {
		return "", false
	}
	for _, kv := range s.Keys {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Marshal serializes the document in NetworkManager keyfile form:
// sections in insertion order, one key=value per line, a blank line
// between sections, trailing newline at end of file.
func (d *Document) Marshal() []byte {
	var buf bytes.Buffer
	for i, s := range d.sections {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "[%s]\n", s.Name)
		for _, kv := range s.Keys {
			fmt.Fprintf(&buf, "%s=%s\n", kv.Key, kv.Value)
		}
	}
	return buf.Bytes()
}
