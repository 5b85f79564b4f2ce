package hypothesis

import "fmt"

// Change describes one weight edit.
type Change struct {
	Index int     `json:"index" yaml:"index"`
	Key   string  `json:"key" yaml:"key"`
	Old   float64 `json:"old" yaml:"old"`
	New   float64 `json:"new" yaml:"new"`
}

// Registry holds the loaded hypotheses in load order. Weights are edited in
// place; the set itself never changes after load.
//
// Registry is not safe for concurrent use; callers serialize access.
type Registry struct {
	items       []Hypothesis
	subscribers []func(Change)
}

// NewRegistry creates a registry over a copy of items.
func NewRegistry(items []Hypothesis) *Registry {
	r := &Registry{items: make([]Hypothesis, len(items))}
	copy(r.items, items)
	return r
}

// Len returns the number of hypotheses.
func (r *Registry) Len() int {
	return len(r.items)
}

// All returns a copy of the hypotheses in load order.
func (r *Registry) All() []Hypothesis {
	list := make([]Hypothesis, len(r.items))
	copy(list, r.items)
	return list
}

// Keys returns one identifier per hypothesis, in load order, that survives
// reloads of the same configuration. The key is built from the track, the
// question, the label and the sorted accepted answers. Hypotheses that are
// identical on all of those get a "#n" occurrence suffix, so the keys are
// always unique.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.items))
	used := make(map[string]bool, len(r.items))
	for i, h := range r.items {
		base := h.Key() + "/" + h.answersKey()
		key := base
		for n := 2; used[key]; n++ {
			key = fmt.Sprintf("%s#%d", base, n)
		}
		used[key] = true
		keys[i] = key
	}
	return keys
}

// Get returns the hypothesis at index.
func (r *Registry) Get(index int) (Hypothesis, error) {
	if index < 0 || index >= len(r.items) {
		return Hypothesis{}, &IndexError{Index: index, Len: len(r.items)}
	}
	return r.items[index], nil
}

// SetWeight sets the weight of the hypothesis at index, clamping value to
// [MinWeight, MaxWeight]. Subscribers are notified after the edit. SetWeight
// does not rescore anything on its own.
func (r *Registry) SetWeight(index int, value float64) error {
	if index < 0 || index >= len(r.items) {
		return &IndexError{Index: index, Len: len(r.items)}
	}

	h := &r.items[index]
	c := Change{
		Index: index,
		Key:   h.Key(),
		Old:   h.Weight,
		New:   ClampWeight(value),
	}
	h.Weight = c.New

	for _, fn := range r.subscribers {
		fn(c)
	}
	return nil
}

// Subscribe registers fn to be called synchronously, in subscription order,
// after every SetWeight.
func (r *Registry) Subscribe(fn func(Change)) {
	if fn == nil {
		return
	}
	r.subscribers = append(r.subscribers, fn)
}
