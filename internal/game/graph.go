package game

// edge is one directed interaction between two nodes.
type edge struct {
	from, to string
}

// Centrality computes degree centrality over the interaction graph of the
// given posts. Nodes are post authors plus any @-mentioned name; edges run
// author -> replied-to author (when the target is in the input set) and
// author -> mentioned name. Duplicate interactions collapse into one edge.
// Centrality is (in+out)/(n-1); with one node or fewer every value is 0.
// The result depends only on the input, so identical post sets always rank
// identically.
func Centrality(posts []Post) map[string]float64 {
	nodes := make(map[string]struct{})
	edges := make(map[edge]struct{})

	byID := make(map[int64]Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	for _, p := range posts {
		nodes[p.Username] = struct{}{}
		if p.ReplyTo != nil {
			if target, ok := byID[*p.ReplyTo]; ok {
				nodes[target.Username] = struct{}{}
				edges[edge{p.Username, target.Username}] = struct{}{}
			}
		}
		for _, mention := range Mentions(p.Message) {
			nodes[mention] = struct{}{}
			edges[edge{p.Username, mention}] = struct{}{}
		}
	}

	out := make(map[string]float64, len(nodes))
	n := len(nodes)
	if n <= 1 {
		for node := range nodes {
			out[node] = 0
		}
		return out
	}

	degree := make(map[string]int, n)
	for e := range edges {
		degree[e.from]++
		degree[e.to]++
	}
	scale := 1 / float64(n-1)
	for node := range nodes {
		out[node] = float64(degree[node]) * scale
	}
	return out
}
