package suite

import (
	"fmt"
	"sort"
)

// All returns every suite in run order.
func All() []*Suite {
	return []*Suite{
		CrossBrowser(),
		Mobile(),
		Performance(),
		Stability(),
		Visual(),
	}
}

// Names returns the names of all suites, sorted.
func Names() []string {
	suites := All()

	names := make([]string, 0, len(suites))
	for _, s := range suites {
		names = append(names, s.Name)
	}
	sort.Strings(names)

	return names
}

// Select returns the named suites, or all of them when names is empty.
func Select(names []string) ([]*Suite, error) {
	all := All()
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]*Suite, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}

	selected := make([]*Suite, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownSuite, name, Names())
		}
		selected = append(selected, s)
	}

	return selected, nil
}
