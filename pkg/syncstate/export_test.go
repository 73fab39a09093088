package syncstate

import (
	"sort"
	"strconv"
)

// Keys returns the recorded story IDs in ascending order.
func (s *State) Keys() []int {
	keys := make([]int, 0, len(s.entries))
	for k := range s.entries {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		keys = append(keys, id)
	}
	sort.Ints(keys)
	return keys
}
