package highlight

import (
	"sort"
	"strings"
)

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func sortInts(v []int) {
	sort.Ints(v)
}
