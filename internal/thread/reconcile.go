package thread

import (
	"github.com/tOgg1/threadline/internal/models"
)

// Anchor is the item a presentation layer keeps fixed across an update.
type Anchor struct {
	Item     models.Item `json:"item"`
	OldIndex int         `json:"old_index"`
	NewIndex int         `json:"new_index"`
}

// Shift is how many rows the anchor moved.
func (a Anchor) Shift() int {
	return a.NewIndex - a.OldIndex
}

// Reconcile returns the first non-loader item of old that is also in next.
func Reconcile(old, next []models.Item) (Anchor, bool) {
	return ReconcileFrom(old, next, 0)
}

// ReconcileFrom is Reconcile starting at firstVisible, the index of the first
// row the presentation layer currently shows. Items at or after firstVisible
// are preferred; earlier ones are tried nearest first.
func ReconcileFrom(old, next []models.Item, firstVisible int) (Anchor, bool) {
	if len(old) == 0 || len(next) == 0 {
		return Anchor{}, false
	}
	if firstVisible < 0 {
		firstVisible = 0
	}
	if firstVisible > len(old) {
		firstVisible = len(old)
	}

	index := make(map[string]int, len(next))
	for i, item := range next {
		if item.IsLoader() {
			continue
		}
		if _, ok := index[item.Key()]; !ok {
			index[item.Key()] = i
		}
	}

	match := func(i int) (Anchor, bool) {
		item := old[i]
		if item.IsLoader() {
			return Anchor{}, false
		}
		j, ok := index[item.Key()]
		if !ok {
			return Anchor{}, false
		}
		return Anchor{Item: next[j], OldIndex: i, NewIndex: j}, true
	}

	for i := firstVisible; i < len(old); i++ {
		if anchor, ok := match(i); ok {
			return anchor, true
		}
	}
	for i := firstVisible - 1; i >= 0; i-- {
		if anchor, ok := match(i); ok {
			return anchor, true
		}
	}
	return Anchor{}, false
}
