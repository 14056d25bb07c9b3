package graph

import (
	"strings"

	"github.com/you/arb-engine/internal/marketdata"
	"github.com/you/arb-engine/internal/types"
	"go.uber.org/zap"
)

type pairEntry struct {
	id    string
	base  string
	quote string
}

type edge struct {
	to   string
	pair int // index into the pair arena
}

// CurrencyGraph maps currencies to their tradable counterparts. Pairs live in
// a flat arena and the adjacency lists carry indices into it, so the hot
// cycle-enumeration loop never touches the pair strings.
type CurrencyGraph struct {
	log    *zap.Logger
	pairs  []pairEntry
	adj    map[string][]edge
	lookup map[string]map[string]int // from -> to -> arena index, closes cycles in O(1)
	ids    map[string]struct{}
}

func New(log *zap.Logger) *CurrencyGraph {
	return &CurrencyGraph{log: log}
}

// Build replaces the graph with one built from the given product list and
// returns the number of pairs inserted. Disabled or malformed products are
// skipped. The graph is rebuilt from scratch on every call.
func (g *CurrencyGraph) Build(products []marketdata.Product) int {
	g.pairs = g.pairs[:0]
	g.adj = make(map[string][]edge, len(products))
	g.lookup = make(map[string]map[string]int, len(products))
	g.ids = make(map[string]struct{}, len(products))

	for _, p := range products {
		if !p.Enabled {
			g.log.Debug("graph: skipping disabled product", zap.String("pair", p.PairID))
			continue
		}
		parts := strings.SplitN(p.PairID, "-", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			g.log.Debug("graph: skipping malformed product", zap.String("pair", p.PairID))
			continue
		}
		base, quote := parts[0], parts[1]
		if _, dup := g.ids[p.PairID]; dup {
			continue
		}

		idx := len(g.pairs)
		g.pairs = append(g.pairs, pairEntry{id: p.PairID, base: base, quote: quote})
		g.ids[p.PairID] = struct{}{}
		g.insertEdge(base, quote, idx)
		g.insertEdge(quote, base, idx)
	}
	return len(g.ids)
}

func (g *CurrencyGraph) insertEdge(from, to string, idx int) {
	m := g.lookup[from]
	if m == nil {
		m = make(map[string]int, 4)
		g.lookup[from] = m
	}
	if _, exists := m[to]; exists {
		return
	}
	m[to] = idx
	g.adj[from] = append(g.adj[from], edge{to: to, pair: idx})
}

// PairCount returns the number of distinct pairs in the graph.
func (g *CurrencyGraph) PairCount() int { return len(g.ids) }

// HasPair reports whether the pair id is in the graph.
func (g *CurrencyGraph) HasPair(id string) bool {
	_, ok := g.ids[id]
	return ok
}

// Currencies returns every currency with at least one edge.
func (g *CurrencyGraph) Currencies() []string {
	out := make([]string, 0, len(g.adj))
	for cur := range g.adj {
		out = append(out, cur)
	}
	return out
}

// FindTriangularPaths enumerates 3-hop cycles start -> mid1 -> mid2 -> start,
// stopping once maxPaths are collected. A currency is never revisited inside
// a cycle.
func (g *CurrencyGraph) FindTriangularPaths(start string, maxPaths int) []types.TriangularPath {
	firstHops := g.adj[start]
	if len(firstHops) == 0 || maxPaths <= 0 {
		return nil
	}

	out := make([]types.TriangularPath, 0, maxPaths)
	for _, e1 := range firstHops {
		mid1 := e1.to
		if mid1 == start {
			continue
		}
		for _, e2 := range g.adj[mid1] {
			mid2 := e2.to
			if mid2 == start || mid2 == mid1 {
				continue
			}
			closing, ok := g.lookup[mid2][start]
			if !ok {
				continue
			}
			out = append(out, types.TriangularPath{
				Currencies: [4]string{start, mid1, mid2, start},
				Pairs:      [3]string{g.pairs[e1.pair].id, g.pairs[e2.pair].id, g.pairs[closing].id},
				Sides: [3]types.TradeSide{
					g.legDirection(e1.pair, start, mid1),
					g.legDirection(e2.pair, mid1, mid2),
					g.legDirection(closing, mid2, start),
				},
			})
			if len(out) >= maxPaths {
				return out
			}
		}
	}
	return out
}

// legDirection derives the trade side for moving from -> to across a pair:
// selling the base yields quote, buying the base spends quote. A mismatch
// means the graph and the product data disagree.
func (g *CurrencyGraph) legDirection(idx int, from, to string) types.TradeSide {
	p := g.pairs[idx]
	switch {
	case from == p.base && to == p.quote:
		return types.SideSell
	case from == p.quote && to == p.base:
		return types.SideBuy
	default:
		g.log.Warn("graph: leg does not match pair orientation",
			zap.String("pair", p.id),
			zap.String("from", from),
			zap.String("to", to),
		)
		return types.SideUnknown
	}
}
