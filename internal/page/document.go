package page

import (
	"errors"
	"slices"
)

// ErrNotRendered is returned when observing a region the page has not
// rendered yet.
var ErrNotRendered = errors.New("page: region not rendered")

// Region selects an observable part of the page.
type Region int

// Observable regions.
const (
	RegionWords Region = iota
	RegionResult
)

func (r Region) String() string {
	switch r {
	case RegionWords:
		return "words"
	case RegionResult:
		return "result"
	default:
		return "unknown"
	}
}

// MutationType classifies a change record.
type MutationType int

// Mutation types.
const (
	// MutationAttributes is a class attribute change on the target.
	MutationAttributes MutationType = iota
	// MutationChildList is a change in the target's children.
	MutationChildList
	// MutationRemoved is delivered once when the observed region itself
	// disappears; the observer is disconnected afterwards.
	MutationRemoved
)

// NodeKind identifies what a mutation targets.
type NodeKind int

// Node kinds.
const (
	NodeContainer NodeKind = iota
	NodeWord
	NodeLetter
	NodeResult
)

// Node addresses an element inside an observed region.
type Node struct {
	Kind   NodeKind
	Word   int
	Letter int
}

// Mutation is one change record.
type Mutation struct {
	Type      MutationType
	Attribute string
	Target    Node
}

// Observer receives mutation batches for one region until disconnected.
type Observer struct {
	doc       *Document
	region    Region
	fn        func([]Mutation)
	connected bool
}

// Disconnect stops delivery. It is safe to call more than once.
func (o *Observer) Disconnect() {
	if o == nil || !o.connected {
		return
	}
	o.connected = false
	o.doc.observers = slices.DeleteFunc(o.doc.observers, func(x *Observer) bool {
		return x == o
	})
}

// Connected reports whether the observer still receives batches.
func (o *Observer) Connected() bool {
	return o != nil && o.connected
}

// Document is the live page. Apply replaces its state and synchronously
// delivers one batch per observer, computed by diffing the previous state.
// A Document is not safe for concurrent use; it belongs to the goroutine
// processing the feed.
type Document struct {
	cur       Snapshot
	observers []*Observer
}

// NewDocument returns an empty document with no regions rendered.
func NewDocument() *Document {
	return &Document{}
}

// Observe registers fn for changes inside region.
func (d *Document) Observe(region Region, fn func([]Mutation)) (*Observer, error) {
	if !d.Present(region) {
		return nil, ErrNotRendered
	}
	o := &Observer{doc: d, region: region, fn: fn, connected: true}
	d.observers = append(d.observers, o)
	return o, nil
}

// Present reports whether region is currently rendered.
func (d *Document) Present(region Region) bool {
	switch region {
	case RegionWords:
		return d.cur.Words != nil
	case RegionResult:
		return d.cur.Result != nil
	}
	return false
}

// Apply makes next the current state and notifies observers.
func (d *Document) Apply(next Snapshot) {
	prev := d.cur
	d.cur = next.Clone()

	batches := map[Region][]Mutation{
		RegionWords:  diffWords(prev.Words, d.cur.Words),
		RegionResult: diffResult(prev.Result, d.cur.Result),
	}

	// Copy first: callbacks may disconnect or add observers.
	observers := slices.Clone(d.observers)
	for _, o := range observers {
		if !o.connected {
			continue
		}
		batch := batches[o.region]
		if len(batch) == 0 {
			continue
		}
		if batch[0].Type == MutationRemoved {
			o.Disconnect()
		}
		o.fn(batch)
	}
}

// Mode returns the active practice mode.
func (d *Document) Mode() string {
	return d.cur.Mode
}

// Slots returns every rendered word slot in page order.
func (d *Document) Slots() []WordSlot {
	if d.cur.Words == nil {
		return nil
	}
	out := make([]WordSlot, len(d.cur.Words.Words))
	for i, w := range d.cur.Words.Words {
		out[i] = w.Slot()
	}
	return out
}

// ActiveSlot returns the first word slot marked active.
func (d *Document) ActiveSlot() (WordSlot, bool) {
	if d.cur.Words == nil {
		return WordSlot{}, false
	}
	for _, w := range d.cur.Words.Words {
		if w.has(ClassActive) {
			return w.Slot(), true
		}
	}
	return WordSlot{}, false
}

// SlotAt returns the first word slot with the given index.
func (d *Document) SlotAt(index int) (WordSlot, bool) {
	if d.cur.Words == nil {
		return WordSlot{}, false
	}
	for _, w := range d.cur.Words.Words {
		if w.Index == index {
			return w.Slot(), true
		}
	}
	return WordSlot{}, false
}

// ResultHidden reports whether the result marker is hidden. ok is false when
// the marker is not rendered.
func (d *Document) ResultHidden() (hidden, ok bool) {
	if d.cur.Result == nil {
		return false, false
	}
	return d.cur.Result.Hidden(), true
}

func diffWords(prev, next *WordsRegion) []Mutation {
	if prev == nil {
		return nil
	}
	if next == nil {
		return []Mutation{{Type: MutationRemoved, Target: Node{Kind: NodeContainer}}}
	}

	var out []Mutation
	if prev.Generation != next.Generation || !sameIndexes(prev.Words, next.Words) {
		out = append(out, Mutation{Type: MutationChildList, Target: Node{Kind: NodeContainer}})
	}
	before := make(map[int]Word, len(prev.Words))
	for _, w := range prev.Words {
		if _, dup := before[w.Index]; !dup {
			before[w.Index] = w
		}
	}
	seen := make(map[int]bool, len(next.Words))
	for _, w := range next.Words {
		if seen[w.Index] {
			continue
		}
		seen[w.Index] = true
		old, ok := before[w.Index]
		if !ok {
			continue
		}
		if !sameClasses(old.Classes, w.Classes) {
			out = append(out, Mutation{Type: MutationAttributes, Attribute: "class", Target: Node{Kind: NodeWord, Word: w.Index}})
		}
		if !sameLetters(old.Letters, w.Letters) {
			out = append(out, Mutation{Type: MutationChildList, Target: Node{Kind: NodeWord, Word: w.Index}})
		}
		n := min(len(old.Letters), len(w.Letters))
		for i := 0; i < n; i++ {
			if !sameClasses(old.Letters[i].Classes, w.Letters[i].Classes) {
				out = append(out, Mutation{Type: MutationAttributes, Attribute: "class", Target: Node{Kind: NodeLetter, Word: w.Index, Letter: i}})
			}
		}
	}
	return out
}

func diffResult(prev, next *Element) []Mutation {
	if prev == nil {
		return nil
	}
	if next == nil {
		return []Mutation{{Type: MutationRemoved, Target: Node{Kind: NodeResult}}}
	}
	if sameClasses(prev.Classes, next.Classes) {
		return nil
	}
	return []Mutation{{Type: MutationAttributes, Attribute: "class", Target: Node{Kind: NodeResult}}}
}

func sameIndexes(a, b []Word) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Index != b[i].Index {
			return false
		}
	}
	return true
}

func sameLetters(a, b []Letter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}

func sameClasses(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
