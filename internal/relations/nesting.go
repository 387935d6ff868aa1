package relations

// Trail is the recursion state threaded through nested resolution. The zero
// value is a top-level call with nothing excluded.
type Trail struct {
	Depth    int
	Excluded []string
	// Disabled turns off relation loading on the nested loader entirely.
	Disabled bool
}

// Excludes reports whether table has already been traversed.
func (t Trail) Excludes(table string) bool {
	for _, name := range t.Excluded {
		if name == table {
			return true
		}
	}
	return false
}

// Next returns the trail handed to the loader of target. The nested loader
// may not request any table excluded so far, anything the current call
// excluded, or target itself; the exclusions accumulate so every path through
// the schema ends.
func (t Trail) Next(target string, without []string, s Settings) Trail {
	depth := t.Depth + 1
	if !s.AllowNesting || t.Disabled {
		return Trail{Depth: depth, Disabled: true}
	}
	if s.MaxDepth > 0 && depth >= s.MaxDepth {
		return Trail{Depth: depth, Disabled: true}
	}

	excluded := make([]string, 0, len(t.Excluded)+len(without)+1)
	seen := make(map[string]bool, cap(excluded))
	for _, group := range [][]string{t.Excluded, without, {target}} {
		for _, name := range group {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			excluded = append(excluded, name)
		}
	}
	return Trail{Depth: depth, Excluded: excluded}
}
