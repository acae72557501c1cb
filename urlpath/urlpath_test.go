package urlpath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainSegment(t *testing.T) {
	s := New("data")
	require.Equal(t, "data", s.Unencoded())
	require.Equal(t, "data", s.Encoded())
	require.Equal(t, "data", s.String())
}

func TestSpaceIsEscaped(t *testing.T) {
	s := New("my file")
	require.Equal(t, "my file", s.Unencoded())
	require.Equal(t, "my%20file", s.Encoded())
}

func TestColonIsPreserved(t *testing.T) {
	s := New("run:2026")
	require.Equal(t, "run:2026", s.Encoded())
}

func TestUTF8IsPercentEncoded(t *testing.T) {
	s := New("grüße")
	require.Equal(t, "grüße", s.Unencoded())
	require.Equal(t, "gr%C3%BC%C3%9Fe", s.Encoded())
}

func TestEmptySegment(t *testing.T) {
	require.Equal(t, "", Empty().Unencoded())
	require.Equal(t, "", Empty().Encoded())
	require.Equal(t, "", New("").Encoded())
}

func TestForSegments(t *testing.T) {
	segments := ForSegments([]string{"a b", "c"})
	require.Len(t, segments, 2)
	require.Equal(t, "a%20b", segments[0].Encoded())
	require.Equal(t, "c", segments[1].Encoded())
}
