package sidebar

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ChicagoDave/popglobe/pkg/hierarchy"
)

// maxSuggestDistance is the largest edit distance offered as a suggestion.
const maxSuggestDistance = 2

// Suggest returns up to n country and subdivision names close to query,
// nearest first. It is meant for searches that produced no rows.
func Suggest(countries []*hierarchy.Country, query string, n int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || n <= 0 {
		return nil
	}

	type candidate struct {
		name string
		dist int
		pop  int64
	}
	var found []candidate
	seen := make(map[string]bool)
	consider := func(name string, pop int64) {
		if name == "" || seen[name] {
			return
		}
		d := levenshtein.ComputeDistance(q, strings.ToLower(name))
		if d <= maxSuggestDistance {
			seen[name] = true
			found = append(found, candidate{name, d, pop})
		}
	}

	for _, c := range countries {
		consider(c.Name, c.Population)
		for _, a := range c.Aliases {
			if d := levenshtein.ComputeDistance(q, strings.ToLower(a)); d <= maxSuggestDistance && !seen[c.Name] {
				seen[c.Name] = true
				found = append(found, candidate{c.Name, d, c.Population})
			}
		}
		for _, s := range c.Subdivisions {
			consider(s.Name, s.Population)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].pop > found[j].pop
	})
	if len(found) > n {
		found = found[:n]
	}
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.name
	}
	return out
}
