package cursor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failWith runs f against a cursor over src and returns the failure
// message.
func failWith(t *testing.T, src string, f func(*Cursor) error) string {
	t.Helper()
	c, err := ParseString(src)
	require.NoError(t, err)
	err = f(c)
	require.Error(t, err)
	var derr *Error
	require.ErrorAs(t, err, &derr, "cursor failures must be *cursor.Error")
	return err.Error()
}

func TestRootErrors(t *testing.T) {
	obj := func(c *Cursor) error {
		_, err := c.Object()
		return err
	}
	assert.Equal(t, "error at root: expected object", failWith(t, "[]", obj))
	assert.Equal(t, "error at root: expected object", failWith(t, "5", obj))

	assert.Equal(t, "error at root: expected integer", failWith(t, "5.1", func(c *Cursor) error {
		_, err := c.Int()
		return err
	}))
	assert.Equal(t, "error at root: expected integer", failWith(t, "true", func(c *Cursor) error {
		_, err := c.Int()
		return err
	}))
	assert.Equal(t, "error at root: expected floating-point number", failWith(t, "3", func(c *Cursor) error {
		_, err := c.Float()
		return err
	}))
	assert.Equal(t, "error at root: expected list", failWith(t, "{}", func(c *Cursor) error {
		_, err := c.List()
		return err
	}))
	assert.Equal(t, "error at root: expected str", failWith(t, "3", func(c *Cursor) error {
		_, err := c.Str()
		return err
	}))
	assert.Equal(t, "error at root: expected boolean", failWith(t, "null", func(c *Cursor) error {
		_, err := c.Bool()
		return err
	}))
	assert.Equal(t, "error at root: expected null", failWith(t, "0", func(c *Cursor) error {
		return c.Null()
	}))
}

func TestNestedPaths(t *testing.T) {
	assert.Equal(t, "error at [0]: expected floating-point number",
		failWith(t, "[2, 3]", func(c *Cursor) error {
			l, err := c.List()
			if err != nil {
				return err
			}
			e, err := l.At(0)
			if err != nil {
				return err
			}
			_, err = e.Float()
			return err
		}))

	assert.Equal(t, "error at .a: expected null",
		failWith(t, `{"a":true}`, func(c *Cursor) error {
			o, err := c.Object()
			if err != nil {
				return err
			}
			v, err := o.Get("a")
			if err != nil {
				return err
			}
			return v.Null()
		}))

	assert.Equal(t, "error at .a[1].b: expected integer",
		failWith(t, `{"a":[0,{"b":"x"}]}`, func(c *Cursor) error {
			o, err := c.Object()
			if err != nil {
				return err
			}
			a, err := o.Get("a")
			if err != nil {
				return err
			}
			l, err := a.List()
			if err != nil {
				return err
			}
			e, err := l.At(1)
			if err != nil {
				return err
			}
			eo, err := e.Object()
			if err != nil {
				return err
			}
			b, err := eo.Get("b")
			if err != nil {
				return err
			}
			_, err = b.Int()
			return err
		}))
}

func TestObjectConsumption(t *testing.T) {
	t.Run("deny unknown names leftover key", func(t *testing.T) {
		assert.Equal(t, "error at root: unexpected key a",
			failWith(t, `{"a":true}`, func(c *Cursor) error {
				o, err := c.Object()
				if err != nil {
					return err
				}
				return o.DenyUnknown()
			}))
	})

	t.Run("deny unknown passes once all keys read", func(t *testing.T) {
		c, err := ParseString(`{"a":true}`)
		require.NoError(t, err)
		o, err := c.Object()
		require.NoError(t, err)
		_, err = o.Get("a")
		require.NoError(t, err)
		require.NoError(t, o.DenyUnknown())
	})

	t.Run("second get behaves as absent", func(t *testing.T) {
		c, err := ParseString(`{"a":1}`)
		require.NoError(t, err)
		o, err := c.Object()
		require.NoError(t, err)
		_, err = o.Get("a")
		require.NoError(t, err)
		_, err = o.Get("a")
		require.EqualError(t, err, "error at root: expected key a")
	})

	t.Run("missing key", func(t *testing.T) {
		c, err := ParseString(`{}`)
		require.NoError(t, err)
		o, err := c.Object()
		require.NoError(t, err)
		_, err = o.Get("name")
		require.EqualError(t, err, "error at root: expected key name")
	})
}

func TestWorks(t *testing.T) {
	c, err := ParseString("[1, 2]")
	require.NoError(t, err)
	l, err := c.List()
	require.NoError(t, err)
	e, err := l.At(0)
	require.NoError(t, err)
	n, err := e.Int()
	require.NoError(t, err)
	v, err := n.Between(0, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestEnum(t *testing.T) {
	colors := []string{"RED", "GREEN", "BLUE"}

	c, err := ParseString(`"RED"`)
	require.NoError(t, err)
	i, err := c.Enum(colors)
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	msg := "error at root: expected one of RED, GREEN, BLUE"
	assert.Equal(t, msg, failWith(t, `"PURPLE"`, func(c *Cursor) error {
		_, err := c.Enum(colors)
		return err
	}))
	assert.Equal(t, msg, failWith(t, "5", func(c *Cursor) error {
		_, err := c.Enum(colors)
		return err
	}))
}

func TestIntBounds(t *testing.T) {
	parse := func(src string) *Int {
		c, err := ParseString(src)
		require.NoError(t, err)
		n, err := c.Int()
		require.NoError(t, err)
		return n
	}

	for src, want := range map[string]int64{"1": 1, "9": 9} {
		got, err := parse(src).Between(1, 9)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parse("0").Between(1, 9)
	require.EqualError(t, err, "error at root: expected integer between 1 and 9; found 0")
	_, err = parse("10").Between(1, 9)
	require.EqualError(t, err, "error at root: expected integer between 1 and 9; found 10")

	got, err := parse("0").AtLeast(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
	_, err = parse("-1").AtLeast(0)
	require.EqualError(t, err, "error at root: expected integer that is at least 0; found -1")
}

func TestStrNonEmpty(t *testing.T) {
	c, err := ParseString(`""`)
	require.NoError(t, err)
	s, err := c.Str()
	require.NoError(t, err)
	_, err = s.NonEmpty()
	require.EqualError(t, err, "error at root: expected nonempty string")

	c, err = ParseString(`"x"`)
	require.NoError(t, err)
	s, err = c.Str()
	require.NoError(t, err)
	v, err := s.NonEmpty()
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}

func TestListBounds(t *testing.T) {
	c, err := ParseString("[]")
	require.NoError(t, err)
	l, err := c.List()
	require.NoError(t, err)
	_, err = l.At(0)
	require.EqualError(t, err, "error at root: expected at least 1 element(s)")
	_, err = l.NonEmpty()
	require.EqualError(t, err, "error at root: expected at least 1 element(s)")

	c, err = ParseString("[0]")
	require.NoError(t, err)
	l, err = c.List()
	require.NoError(t, err)
	_, err = l.At(3)
	require.EqualError(t, err, "error at root: expected at least 4 element(s)")

	assert.Panics(t, func() {
		_, _ = l.At(-1)
	})
}

func TestListAll(t *testing.T) {
	c, err := ParseString(`["a", "b", "c"]`)
	require.NoError(t, err)
	l, err := c.List()
	require.NoError(t, err)
	require.Equal(t, 3, l.Len())

	var got []string
	for e := range l.All() {
		s, err := e.Str()
		require.NoError(t, err)
		got = append(got, s.Value())
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	// A second pass starts fresh.
	n := 0
	for range l.All() {
		n++
	}
	assert.Equal(t, 3, n)
}

func TestParse(t *testing.T) {
	_, err := Parse([]byte("{"))
	require.Error(t, err)
	var derr *Error
	assert.False(t, errors.As(err, &derr), "parse failures are not positioned decode errors")

	c := New(map[string]any{"n": int64(3)})
	o, err := c.Object()
	require.NoError(t, err)
	v, err := o.Get("n")
	require.NoError(t, err)
	n, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n.Value())
}
