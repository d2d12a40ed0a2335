// Package rucksack implements the versioned clip-item store: an
// ordered list of named items persisted as a JSON index file plus
// numbered auxiliary .kra documents in the same directory. Two
// independent scopes (global and local) use the same layout.
package rucksack

import (
	"fmt"
	"slices"
)

// NodeKind records the structural role a saved node held in its
// source document. The declared order is the wire order.
type NodeKind int

const (
	KindLayer NodeKind = iota
	KindLayerFile
	KindLayerFill
	KindLayerFilter
	KindLayerGroup
	KindLayerVector
	KindMaskColorize
	KindMaskFilter
	KindMaskSelection
	KindMaskTransform
	KindMaskTransparency
)

var nodeKindNames = []string{
	"LAYER",
	"LAYER_FILE",
	"LAYER_FILL",
	"LAYER_FILTER",
	"LAYER_GROUP",
	"LAYER_VECTOR",
	"MASK_COLORIZE",
	"MASK_FILTER",
	"MASK_SELECTION",
	"MASK_TRANSFORM",
	"MASK_TRANSPARENCY",
}

// String returns the wire name of the kind.
func (k NodeKind) String() string {
	return nodeKindNames[k]
}

// ParseNodeKind maps a wire name back to its kind.
func ParseNodeKind(name string) (NodeKind, error) {
	if i := slices.Index(nodeKindNames, name); i >= 0 {
		return NodeKind(i), nil
	}
	return 0, fmt.Errorf("unknown node kind %q", name)
}

// IsMask partitions the eleven kinds into layer kinds and mask kinds.
func (k NodeKind) IsMask() bool {
	switch k {
	case KindLayer, KindLayerFile, KindLayerFill, KindLayerFilter,
		KindLayerGroup, KindLayerVector:
		return false
	case KindMaskColorize, KindMaskFilter, KindMaskSelection,
		KindMaskTransform, KindMaskTransparency:
		return true
	}
	panic("unknown node kind")
}

// ItemData is the payload of a stored item: exactly one of NodeRef,
// Vector or LayerStyle. The interface is sealed so every match site
// stays exhaustive when a variant is added.
type ItemData interface {
	isItemData()
}

// NodeRef references an auxiliary document numbered Filename.kra in
// the store directory, holding a node of the recorded kind.
type NodeRef struct {
	Filename int
	Kind     NodeKind
}

// Vector is an inline SVG payload. IsText marks vectors that were
// saved from a text shape and selects the TEXT wire tag.
type Vector struct {
	SVG    string
	IsText bool
}

// LayerStyle is an inline ASL payload.
type LayerStyle struct {
	ASL string
}

func (NodeRef) isItemData()    {}
func (Vector) isItemData()     {}
func (LayerStyle) isItemData() {}

// Item is one stored entry. Names need not be unique; list order is
// meaningful and preserved.
type Item struct {
	Name string
	Data ItemData
}

// Describe returns the short payload description used in listings.
func Describe(d ItemData) string {
	switch d := d.(type) {
	case NodeRef:
		if d.Kind.IsMask() {
			return "mask"
		}
		return "layer"
	case Vector:
		if d.IsText {
			return "text"
		}
		return "vector"
	case LayerStyle:
		return "layer style"
	}
	panic("unknown item data variant")
}
