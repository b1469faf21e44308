// Package page models the observed practice page: the words container, the
// result marker and the mode indicator.
package page

import (
	"slices"
	"strings"
)

// Class names the page uses.
const (
	ClassActive    = "active"
	ClassError     = "error"
	ClassIncorrect = "incorrect"
	ClassCorrected = "corrected"
	ClassExtra     = "extra"
	ClassHidden    = "hidden"
)

// Snapshot is the full observed state of the page at one instant.
type Snapshot struct {
	Mode   string       `json:"mode"`
	Words  *WordsRegion `json:"words,omitempty"`
	Result *Element     `json:"result,omitempty"`
}

// WordsRegion is the container holding the rendered word slots, in order.
// Generation changes whenever the page re-renders the container's children
// wholesale (a restart renders fresh words with the same indexes).
type WordsRegion struct {
	Generation int    `json:"generation,omitempty"`
	Words      []Word `json:"words"`
}

// Word is one rendered word element.
type Word struct {
	Index   int      `json:"index"`
	Classes []string `json:"classes,omitempty"`
	Letters []Letter `json:"letters,omitempty"`
}

// Letter is one letter element inside a word.
type Letter struct {
	Text    string   `json:"text"`
	Classes []string `json:"classes,omitempty"`
}

// Element is a bare element observed only through its classes.
type Element struct {
	Classes []string `json:"classes,omitempty"`
}

// WordSlot is the derived, read-only view of a word element.
type WordSlot struct {
	Index    int
	Target   string
	HasError bool
	Active   bool
}

// Has reports whether the element carries class.
func (e Element) Has(class string) bool {
	return slices.Contains(e.Classes, class)
}

// Hidden reports whether the element carries the hidden class.
func (e Element) Hidden() bool {
	return e.Has(ClassHidden)
}

func (w Word) has(class string) bool {
	return slices.Contains(w.Classes, class)
}

func (l Letter) has(class string) bool {
	return slices.Contains(l.Classes, class)
}

// Slot derives the word slot: the target text excludes extra letters typed
// past the end of the word, and an error is either the word's error class or
// any incorrect or corrected letter.
func (w Word) Slot() WordSlot {
	var b strings.Builder
	hasError := w.has(ClassError)
	for _, l := range w.Letters {
		if l.has(ClassIncorrect) || l.has(ClassCorrected) {
			hasError = true
		}
		if l.has(ClassExtra) {
			continue
		}
		b.WriteString(l.Text)
	}
	return WordSlot{
		Index:    w.Index,
		Target:   strings.TrimSpace(b.String()),
		HasError: hasError,
		Active:   w.has(ClassActive),
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Mode: s.Mode}
	if s.Words != nil {
		words := make([]Word, len(s.Words.Words))
		for i, w := range s.Words.Words {
			words[i] = w.clone()
		}
		out.Words = &WordsRegion{Generation: s.Words.Generation, Words: words}
	}
	if s.Result != nil {
		out.Result = &Element{Classes: slices.Clone(s.Result.Classes)}
	}
	return out
}

func (w Word) clone() Word {
	letters := make([]Letter, len(w.Letters))
	for i, l := range w.Letters {
		letters[i] = Letter{Text: l.Text, Classes: slices.Clone(l.Classes)}
	}
	return Word{Index: w.Index, Classes: slices.Clone(w.Classes), Letters: letters}
}
