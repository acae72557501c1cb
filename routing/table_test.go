package routing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/masstor/namespacedb/errors"
)

func TestFindPriority(t *testing.T) {
	table := NewTable()

	exact := Route{Type: RouteExact, Cell: "foo", Domain: "d1", Gateway: "gw1"}
	domain := Route{Type: RouteDomain, Domain: "d1", Gateway: "gw2"}
	deflt := Route{Type: RouteDefault, Gateway: "gw3"}
	require.NoError(t, table.Add(exact))
	require.NoError(t, table.Add(domain))
	require.NoError(t, table.Add(deflt))

	route, ok := table.Find(ParseAddress("foo@d1"))
	require.True(t, ok)
	require.Equal(t, "gw1", route.Gateway)

	route, ok = table.Find(ParseAddress("bar@d1"))
	require.True(t, ok)
	require.Equal(t, "gw2", route.Gateway)

	route, ok = table.Find(ParseAddress("bar@d2"))
	require.True(t, ok)
	require.Equal(t, "gw3", route.Gateway)
}

func TestFindWellknownOnlyLocal(t *testing.T) {
	table := NewTable()

	wk := Route{Type: RouteWellknown, Cell: "pnfs", Gateway: "gw1"}
	require.NoError(t, table.Add(wk))

	route, ok := table.Find(ParseAddress("pnfs@local"))
	require.True(t, ok)
	require.Equal(t, "gw1", route.Gateway)

	// a bare cell name is a local address
	route, ok = table.Find(ParseAddress("pnfs"))
	require.True(t, ok)
	require.Equal(t, "gw1", route.Gateway)

	_, ok = table.Find(ParseAddress("pnfs@remote"))
	require.False(t, ok)
}

func TestTopicRoutes(t *testing.T) {
	table := NewTable()

	a := Route{Type: RouteTopic, Cell: "t", Gateway: "gwA"}
	b := Route{Type: RouteTopic, Cell: "t", Gateway: "gwB"}
	require.NoError(t, table.Add(a))
	require.NoError(t, table.Add(b))

	routes := table.FindTopicRoutes(ParseAddress("t@local"))
	require.ElementsMatch(t, []Route{a, b}, routes)

	require.Empty(t, table.FindTopicRoutes(ParseAddress("t@d1")))
	require.Empty(t, table.FindTopicRoutes(ParseAddress("other@local")))
}

func TestAddRejectsDuplicates(t *testing.T) {
	table := NewTable()

	routes := []Route{
		{Type: RouteExact, Cell: "foo", Domain: "d1", Gateway: "gw"},
		{Type: RouteAlias, Cell: "alias", Domain: "d1", Gateway: "gw"},
		{Type: RouteWellknown, Cell: "foo", Gateway: "gw"},
		{Type: RouteDomain, Domain: "d1", Gateway: "gw"},
		{Type: RouteTopic, Cell: "t", Gateway: "gw"},
		{Type: RouteDefault, Gateway: "gw"},
		{Type: RouteDumpster, Gateway: "gw"},
	}
	for _, route := range routes {
		require.NoError(t, table.Add(route))
		err := table.Add(route)
		require.ErrorIs(t, err, apierrors.ErrDuplicateEntry, "route %v", route)
	}
}

func TestDeleteIsSymmetric(t *testing.T) {
	table := NewTable()

	routes := []Route{
		{Type: RouteExact, Cell: "foo", Domain: "d1", Gateway: "gw"},
		{Type: RouteWellknown, Cell: "foo", Gateway: "gw"},
		{Type: RouteDomain, Domain: "d1", Gateway: "gw"},
		{Type: RouteTopic, Cell: "t", Gateway: "gw"},
		{Type: RouteDefault, Gateway: "gw"},
		{Type: RouteDumpster, Gateway: "gw"},
	}
	for _, route := range routes {
		require.NoError(t, table.Add(route))
		require.NoError(t, table.Delete(route))
		err := table.Delete(route)
		require.ErrorIs(t, err, apierrors.ErrNotFound, "route %v", route)
	}
	require.Empty(t, table.Routes())
}

func TestDeleteTarget(t *testing.T) {
	table := NewTable()

	require.NoError(t, table.Add(Route{Type: RouteExact, Cell: "foo", Domain: "d1", Gateway: "gw1"}))
	require.NoError(t, table.Add(Route{Type: RouteDomain, Domain: "d1", Gateway: "gw1"}))
	require.NoError(t, table.Add(Route{Type: RouteTopic, Cell: "t", Gateway: "gw1"}))
	require.NoError(t, table.Add(Route{Type: RouteTopic, Cell: "t", Gateway: "gw2"}))
	require.NoError(t, table.Add(Route{Type: RouteDefault, Gateway: "gw1"}))

	deleted := table.DeleteTarget("gw1")
	require.Len(t, deleted, 4)

	remaining := table.Routes()
	require.Len(t, remaining, 1)
	require.Equal(t, "gw2", remaining[0].Gateway)

	_, ok := table.Find(ParseAddress("foo@d1"))
	require.False(t, ok)
}

func TestMultipleWellknownKeepsFirst(t *testing.T) {
	table := NewTable()

	first := Route{Type: RouteWellknown, Cell: "foo", Gateway: "gw1"}
	second := Route{Type: RouteWellknown, Cell: "foo", Gateway: "gw2"}
	require.NoError(t, table.Add(first))
	require.NoError(t, table.Add(second))

	route, ok := table.Find(ParseAddress("foo@local"))
	require.True(t, ok)
	require.Equal(t, "gw1", route.Gateway)

	require.NoError(t, table.Delete(first))
	route, ok = table.Find(ParseAddress("foo@local"))
	require.True(t, ok)
	require.Equal(t, "gw2", route.Gateway)
}

func TestStringListing(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Add(Route{Type: RouteExact, Cell: "foo", Domain: "d1", Gateway: "gw1"}))
	require.NoError(t, table.Add(Route{Type: RouteDefault, Gateway: "gw3"}))

	s := table.String()
	require.True(t, strings.HasPrefix(s, "CELL"))
	require.Contains(t, s, "gw1")
	require.Contains(t, s, "default")
}

func TestParseAddress(t *testing.T) {
	addr := ParseAddress("cell@domain")
	require.Equal(t, "cell", addr.Cell)
	require.Equal(t, "domain", addr.Domain)

	addr = ParseAddress("cell")
	require.Equal(t, LocalDomain, addr.Domain)
	require.Equal(t, "cell@local", addr.String())
}
