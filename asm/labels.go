package asm

import "github.com/generin0/vasm/diag"

// MaxLabels mirrors the original assembler's fixed label-table size.
const MaxLabels = 256

// Label is a named address, either into the code section or the data
// section.
type Label struct {
	Name    string
	Address uint16
	IsData  bool
}

// LabelTable is an append-only, linearly-scanned set of labels. At
// this scale (<=256 entries) a map buys nothing a slice scan
// doesn't, and a slice keeps definition order for relocation.
type LabelTable struct {
	labels []Label
}

// NewLabelTable returns an empty label table.
func NewLabelTable() *LabelTable {
	return &LabelTable{labels: make([]Label, 0, MaxLabels)}
}

// Find returns the label with the given name, if any.
func (t *LabelTable) Find(name string) (Label, bool) {
	for _, l := range t.labels {
		if l.Name == name {
			return l, true
		}
	}
	return Label{}, false
}

// Add registers a new label. Duplicate names raise diag.LabelDuplicate
// on the sink and the later definition is discarded. Exceeding
// MaxLabels raises a Fatal diag.LabelTooMany.
func (t *LabelTable) Add(sink *diag.Sink, line int, name string, address uint16, isData bool) {
	if _, ok := t.Find(name); ok {
		sink.Push(diag.LabelDuplicate, diag.Warning, line, 0, "", "label %q redefined, keeping first definition", name)
		return
	}
	if len(t.labels) >= MaxLabels {
		sink.Push(diag.LabelTooMany, diag.Fatal, line, 0, "", "label table full (max %d labels)", MaxLabels)
		return
	}
	t.labels = append(t.labels, Label{Name: name, Address: address, IsData: isData})
}

// RelocateData rewrites every data label's address once the final
// start of the data section (newStart) is known. oldStart is the
// provisional base data labels were registered against during pass 1.
func (t *LabelTable) RelocateData(oldStart, newStart uint16) {
	for i := range t.labels {
		if t.labels[i].IsData {
			t.labels[i].Address = newStart + (t.labels[i].Address - oldStart)
		}
	}
}

// Len returns the number of registered labels.
func (t *LabelTable) Len() int {
	return len(t.labels)
}

// All returns the labels in definition order. Callers must not mutate
// the returned slice's backing array.
func (t *LabelTable) All() []Label {
	return t.labels
}
