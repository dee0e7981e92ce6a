// Package ranking selects the best candidates from an iteration's pool,
// either by absolute score or by transitive pairwise comparison, and assigns
// stable cross-iteration global ranks.
package ranking

// Graph is a comparison graph closed under transitivity: whenever A>B and
// B>C are recorded, A>C is derivable without another judge call. Run-local;
// not safe for concurrent use.
type Graph struct {
	beats    map[string]map[string]bool // beats[w][l]: w is known to beat l
	beatenBy map[string]map[string]bool // reverse index for closure
}

// NewGraph creates an empty comparison graph.
func NewGraph() *Graph {
	return &Graph{
		beats:    make(map[string]map[string]bool),
		beatenBy: make(map[string]map[string]bool),
	}
}

// Add records winner > loser and closes the graph: everyone known to beat
// the winner also beats the loser and everyone the loser beats.
func (g *Graph) Add(winner, loser string) {
	above := []string{winner}
	for w := range g.beatenBy[winner] {
		above = append(above, w)
	}
	below := []string{loser}
	for l := range g.beats[loser] {
		below = append(below, l)
	}

	for _, w := range above {
		for _, l := range below {
			if w == l {
				continue
			}
			g.addEdge(w, l)
		}
	}
}

// SeedOrdered records a full order: ids[0] beats everyone after it, and so on.
// Used to seed prior parents' relative order so the judge is not re-asked.
func (g *Graph) SeedOrdered(ids []string) {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			g.Add(ids[i], ids[j])
		}
	}
}

// Winner returns the known winner of the pair, if any.
func (g *Graph) Winner(a, b string) (string, bool) {
	if g.beats[a][b] {
		return a, true
	}
	if g.beats[b][a] {
		return b, true
	}
	return "", false
}

// Known reports whether the pair's order is established.
func (g *Graph) Known(a, b string) bool {
	_, ok := g.Winner(a, b)
	return ok
}

// Wins returns the number of candidates id is known to beat, directly or
// transitively.
func (g *Graph) Wins(id string) int {
	return len(g.beats[id])
}

func (g *Graph) addEdge(w, l string) {
	if g.beats[w] == nil {
		g.beats[w] = make(map[string]bool)
	}
	g.beats[w][l] = true
	if g.beatenBy[l] == nil {
		g.beatenBy[l] = make(map[string]bool)
	}
	g.beatenBy[l][w] = true
}
