package schema

import (
	"container/list"
	"fmt"
	"sort"
	"strings"
)

// maxCycleSearchSteps bounds the backtracking search per start table.
const maxCycleSearchSteps = 10000

// Cycle is a closed relationship path of three or more tables, e.g. [a b c a].
// Two-table cycles (every hasMany with its belongsTo) are expected and are not
// reported; nested loading cuts them off by exclusion, longer ones rely on the
// depth limit.
type Cycle []string

func (c Cycle) String() string {
	return strings.Join(c, " -> ")
}

// CycleError reports relationship cycles as an error for strict callers.
type CycleError struct {
	Cycles []Cycle
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("schema contains %d relationship cycle(s) of three or more tables", len(e.Cycles))
	for _, c := range e.Cycles {
		msg += "\n  " + c.String()
	}
	return msg
}

// degrees counts relationship edges between tables still in play.
func (s *Schema) degrees(alive map[string]bool) (in, out map[string]int) {
	in = make(map[string]int, len(alive))
	out = make(map[string]int, len(alive))
	for name := range alive {
		in[name] += 0
		out[name] += 0
		for target := range s.tables[name].Relations {
			if !alive[target] || target == name {
				continue
			}
			out[name]++
			in[target]++
		}
	}
	return in, out
}

// cycleCandidates peels tables with no incoming or no outgoing relationship
// until none are left. What remains is every table on some directed cycle.
func (s *Schema) cycleCandidates() map[string]bool {
	alive := make(map[string]bool, len(s.tables))
	for name := range s.tables {
		alive[name] = true
	}

	in, out := s.degrees(alive)
	queue := list.New()
	for name := range alive {
		if in[name] == 0 || out[name] == 0 {
			queue.PushBack(name)
		}
	}

	for queue.Len() > 0 {
		elem := queue.Front()
		queue.Remove(elem)
		name := elem.Value.(string)
		if !alive[name] {
			continue
		}
		delete(alive, name)

		for target := range s.tables[name].Relations {
			if alive[target] {
				in[target]--
				if in[target] == 0 {
					queue.PushBack(target)
				}
			}
		}
		for other := range alive {
			if _, ok := s.tables[other].Relations[name]; ok {
				out[other]--
				if out[other] == 0 {
					queue.PushBack(other)
				}
			}
		}
	}
	return alive
}

// Cycles returns one path for every distinct set of three or more tables that
// form a directed relationship cycle, sorted by path.
func (s *Schema) Cycles() []Cycle {
	alive := s.cycleCandidates()
	if len(alive) < 3 {
		return nil
	}

	starts := make([]string, 0, len(alive))
	for name := range alive {
		starts = append(starts, name)
	}
	sort.Strings(starts)

	seen := make(map[string]bool)
	var cycles []Cycle
	for _, start := range starts {
		path := s.FindCyclePath(start, alive)
		if path == nil {
			continue
		}
		members := append([]string(nil), path[:len(path)-1]...)
		sort.Strings(members)
		key := strings.Join(members, ",")
		if seen[key] {
			continue
		}
		seen[key] = true
		cycles = append(cycles, path)
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].String() < cycles[j].String()
	})
	return cycles
}

// HasLongCycle returns true if the schema contains a cycle of three or more tables.
func (s *Schema) HasLongCycle() bool {
	return len(s.Cycles()) > 0
}

// FindCyclePath finds a path of at least three tables from start back to
// itself within allowed. Returns nil if none is found.
func (s *Schema) FindCyclePath(start string, allowed map[string]bool) Cycle {
	onPath := map[string]bool{start: true}
	path := []string{start}
	steps := 0

	if s.dfsFindPath(start, start, onPath, allowed, &path, &steps) {
		return path
	}
	return nil
}

// dfsFindPath backtracks so a table reached early by a short route can still
// be used by a longer one.
func (s *Schema) dfsFindPath(current, target string, onPath, allowed map[string]bool, path *[]string, steps *int) bool {
	*steps++
	if *steps > maxCycleSearchSteps {
		return false
	}

	for _, next := range s.tables[current].RelationNames() {
		if !allowed[next] {
			continue
		}
		if next == target {
			if len(*path) >= 3 {
				*path = append(*path, target)
				return true
			}
			continue
		}
		if onPath[next] {
			continue
		}

		onPath[next] = true
		*path = append(*path, next)
		if s.dfsFindPath(next, target, onPath, allowed, path, steps) {
			return true
		}
		*path = (*path)[:len(*path)-1]
		onPath[next] = false
	}
	return false
}
