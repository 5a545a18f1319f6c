package move

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestSquareNames(t *testing.T) {
	is := is.New(t)
	for i := 0; i < NumSquares; i++ {
		sq, err := ParseSquare(Square(i).String())
		is.NoErr(err)
		is.Equal(sq, Square(i))
	}
	_, err := ParseSquare("d4")
	is.True(errors.Is(err, ErrBadNotation))
	is.Equal(NoSquare.String(), "--")
}

func TestEncoding(t *testing.T) {
	is := is.New(t)

	p := NewPlace(7)
	is.Equal(p.Action(), ActionPlace)
	is.Equal(p.To(), Square(7))
	is.Equal(p.From(), NoSquare)

	s := NewSlide(21, 9)
	is.Equal(s.Action(), ActionSlide)
	is.Equal(s.From(), Square(21))
	is.Equal(s.To(), Square(9))

	r := NewRemove(0)
	is.Equal(r.Action(), ActionRemove)
	is.Equal(r.To(), Square(0))
	is.True(r != None)
	is.True(None.IsNone())
	is.Equal(None.Action(), ActionNone)
}

func TestNotation(t *testing.T) {
	is := is.New(t)
	cases := []struct {
		in  string
		out Move
	}{
		{"d6", NewPlace(4)},
		{"A1", NewPlace(21)},
		{"a1-a4", NewSlide(21, 9)},
		{"xg7", NewRemove(2)},
		{" e3 ", NewPlace(17)},
	}
	for _, c := range cases {
		m, err := Parse(c.in)
		is.NoErr(err)
		is.Equal(m, c.out)
		again, err := Parse(m.String())
		is.NoErr(err)
		is.Equal(again, m)
	}
	for _, bad := range []string{"", "z9", "a1-a1", "x", "a1-q3"} {
		_, err := Parse(bad)
		is.True(errors.Is(err, ErrBadNotation))
	}
	is.Equal(None.String(), "(none)")
}
