// Package cursor implements a validating decoder over parsed generic
// JSON values. A Cursor pairs a value with the path of lookups that
// produced it; typed refinements either narrow the value or fail with
// an error carrying that path. Object field reads are tracked so that
// DenyUnknown can reject keys no decoder consumed, which makes
// decoding a one-shot protocol: decode fully, then discard the
// cursors.
package cursor

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/ohler55/ojg/oj"
)

// Error is a decode failure positioned within the document. Path is
// the rendered location: "root" for the document root, then ".key"
// and "[i]" segments concatenated in lookup order.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("error at %s: %s", e.Path, e.Message)
}

// Cursor wraps a decoded JSON value together with its path from the
// document root.
type Cursor struct {
	value any
	path  string
}

// Parse decodes data and returns a cursor rooted at the result.
// Integral numbers decode as int64 and decimal numbers as float64;
// Int and Float rely on that distinction.
func Parse(data []byte) (*Cursor, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &Cursor{value: v}, nil
}

// ParseString is Parse for string input.
func ParseString(src string) (*Cursor, error) {
	v, err := oj.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &Cursor{value: v}, nil
}

// New roots a cursor at an already-parsed value.
func New(value any) *Cursor {
	return &Cursor{value: value}
}

// Path renders the cursor's position for display.
func (c *Cursor) Path() string {
	if c.path == "" {
		return "root"
	}
	return c.path
}

func (c *Cursor) fail(msg string) *Error {
	return &Error{Path: c.Path(), Message: msg}
}

func (c *Cursor) failf(format string, args ...any) *Error {
	return c.fail(fmt.Sprintf(format, args...))
}

// Object narrows to a map value.
func (c *Cursor) Object() (*Object, error) {
	m, ok := c.value.(map[string]any)
	if !ok {
		return nil, c.fail("expected object")
	}
	return &Object{cur: c, value: m, seen: make(map[string]bool)}, nil
}

// List narrows to a sequence value.
func (c *Cursor) List() (*List, error) {
	l, ok := c.value.([]any)
	if !ok {
		return nil, c.fail("expected list")
	}
	return &List{cur: c, value: l}, nil
}

// Str narrows to a string value.
func (c *Cursor) Str() (*Str, error) {
	s, ok := c.value.(string)
	if !ok {
		return nil, c.fail("expected str")
	}
	return &Str{cur: c, value: s}, nil
}

// Int narrows to an integer value. Booleans and floats are not
// integers, even when integral.
func (c *Cursor) Int() (*Int, error) {
	switch n := c.value.(type) {
	case int64:
		return &Int{cur: c, value: n}, nil
	case int:
		return &Int{cur: c, value: int64(n)}, nil
	}
	return nil, c.fail("expected integer")
}

// Float narrows to a floating-point value. An integer is not
// accepted; the two carry distinct tags in the value model.
func (c *Cursor) Float() (float64, error) {
	f, ok := c.value.(float64)
	if !ok {
		return 0, c.fail("expected floating-point number")
	}
	return f, nil
}

// Bool narrows to a boolean value.
func (c *Cursor) Bool() (bool, error) {
	b, ok := c.value.(bool)
	if !ok {
		return false, c.fail("expected boolean")
	}
	return b, nil
}

// Null requires the value to be null.
func (c *Cursor) Null() error {
	if c.value != nil {
		return c.fail("expected null")
	}
	return nil
}

// Enum requires a string equal to one of allowed and returns its
// index. The failure message lists every allowed name in declared
// order.
func (c *Cursor) Enum(allowed []string) (int, error) {
	if s, ok := c.value.(string); ok {
		if i := slices.Index(allowed, s); i >= 0 {
			return i, nil
		}
	}
	return 0, c.failf("expected one of %s", strings.Join(allowed, ", "))
}

// Object is a cursor over a map value. Field reads are consuming: a
// key read once behaves as absent afterward, and DenyUnknown fails
// while any key remains unread.
type Object struct {
	cur   *Cursor
	value map[string]any
	seen  map[string]bool
}

// Get consumes key and returns a cursor over its value. Absent and
// already-consumed keys fail identically.
func (o *Object) Get(key string) (*Cursor, error) {
	v, ok := o.value[key]
	if !ok || o.seen[key] {
		return nil, o.cur.failf("expected key %s", key)
	}
	o.seen[key] = true
	return &Cursor{value: v, path: o.cur.path + "." + key}, nil
}

// DenyUnknown fails if any key was not consumed by a Get, naming the
// first such key in sorted order.
func (o *Object) DenyUnknown() error {
	var leftover []string
	for k := range o.value {
		if !o.seen[k] {
			leftover = append(leftover, k)
		}
	}
	if len(leftover) == 0 {
		return nil
	}
	slices.Sort(leftover)
	return o.cur.failf("unexpected key %s", leftover[0])
}

// List is a cursor over a sequence value.
type List struct {
	cur   *Cursor
	value []any
}

// Len reports the number of elements.
func (l *List) Len() int {
	return len(l.value)
}

// At returns a cursor over element i. Indexing past the end is a
// decode failure; a negative index is a programming error.
func (l *List) At(i int) (*Cursor, error) {
	if i < 0 {
		panic("attempted to index with negative integer")
	}
	if i >= len(l.value) {
		return nil, l.cur.failf("expected at least %d element(s)", i+1)
	}
	return &Cursor{value: l.value[i], path: fmt.Sprintf("%s[%d]", l.cur.path, i)}, nil
}

// All iterates the elements in order, each as a positioned cursor.
// The sequence is lazy and single-pass; call All again for a fresh
// pass.
func (l *List) All() iter.Seq[*Cursor] {
	return func(yield func(*Cursor) bool) {
		for i := range l.value {
			c, _ := l.At(i)
			if !yield(c) {
				return
			}
		}
	}
}

// NonEmpty fails on an empty list.
func (l *List) NonEmpty() (*List, error) {
	if _, err := l.At(0); err != nil {
		return nil, err
	}
	return l, nil
}

// Str is a cursor over a string value.
type Str struct {
	cur   *Cursor
	value string
}

// Value returns the string.
func (s *Str) Value() string {
	return s.value
}

// NonEmpty fails on an empty string.
func (s *Str) NonEmpty() (string, error) {
	if s.value == "" {
		return "", s.cur.fail("expected nonempty string")
	}
	return s.value, nil
}

// Int is a cursor over an integer value.
type Int struct {
	cur   *Cursor
	value int64
}

// Value returns the integer.
func (i *Int) Value() int64 {
	return i.value
}

// AtLeast fails when the value is below min.
func (i *Int) AtLeast(min int64) (int64, error) {
	if i.value < min {
		return 0, i.cur.failf("expected integer that is at least %d; found %d", min, i.value)
	}
	return i.value, nil
}

// Between fails when the value is outside [min, max].
func (i *Int) Between(min, max int64) (int64, error) {
	if i.value < min || i.value > max {
		return 0, i.cur.failf("expected integer between %d and %d; found %d", min, max, i.value)
	}
	return i.value, nil
}
