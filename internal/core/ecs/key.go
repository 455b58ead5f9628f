package ecs

import (
	"slices"
	"strconv"
	"strings"
)

// archetypeKey is the sorted, duplicate free set of component ids stored by
// an archetype.
type archetypeKey []TypeID

func makeKey(ids ...TypeID) archetypeKey {
	k := slices.Clone(ids)
	slices.Sort(k)
	return slices.Compact(k)
}

func (k archetypeKey) has(id TypeID) bool {
	_, ok := slices.BinarySearch(k, id)
	return ok
}

func (k archetypeKey) index(id TypeID) int {
	i, ok := slices.BinarySearch(k, id)
	if !ok {
		return -1
	}
	return i
}

func (k archetypeKey) with(id TypeID) archetypeKey {
	i, ok := slices.BinarySearch(k, id)
	if ok {
		return k
	}
	return slices.Insert(slices.Clone(k), i, id)
}

func (k archetypeKey) without(id TypeID) archetypeKey {
	i, ok := slices.BinarySearch(k, id)
	if !ok {
		return k
	}
	return slices.Delete(slices.Clone(k), i, i+1)
}

// includes reports whether every id of sub is in k. Both are sorted, so a
// single merge pass suffices.
func (k archetypeKey) includes(sub []TypeID) bool {
	i := 0
	for _, id := range sub {
		for i < len(k) && k[i] < id {
			i++
		}
		if i == len(k) || k[i] != id {
			return false
		}
		i++
	}
	return true
}

// hash is the map key for canonical archetype lookup.
func (k archetypeKey) hash() string {
	var b strings.Builder
	for i, id := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}
