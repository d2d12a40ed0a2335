package rucksack

import (
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/rucksack/internal/cursor"
)

// Wire tags for item payloads, in declared order. LAYER is the legacy
// encoding of a plain paint layer and is accepted on decode only;
// encoding always uses the current tags.
var itemTags = []string{"NODE", "VECTOR", "TEXT", "LAYER_STYLE", "LAYER"}

const (
	tagNode = iota
	tagVector
	tagText
	tagLayerStyle
	tagLegacyLayer
)

// DecodeIndex decodes the index file shape {"items":[...]} into its
// item list. Every object level is decoded exhaustively.
func DecodeIndex(data []byte) ([]Item, error) {
	c, err := cursor.Parse(data)
	if err != nil {
		return nil, err
	}
	root, err := c.Object()
	if err != nil {
		return nil, err
	}
	itemsCur, err := root.Get("items")
	if err != nil {
		return nil, err
	}
	list, err := itemsCur.List()
	if err != nil {
		return nil, err
	}
	if err := root.DenyUnknown(); err != nil {
		return nil, err
	}
	items := make([]Item, 0, list.Len())
	for ec := range list.All() {
		item, err := decodeItem(ec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeItem(c *cursor.Cursor) (Item, error) {
	obj, err := c.Object()
	if err != nil {
		return Item{}, err
	}
	nameCur, err := obj.Get("name")
	if err != nil {
		return Item{}, err
	}
	nameStr, err := nameCur.Str()
	if err != nil {
		return Item{}, err
	}
	name, err := nameStr.NonEmpty()
	if err != nil {
		return Item{}, err
	}
	kindCur, err := obj.Get("kind")
	if err != nil {
		return Item{}, err
	}
	kind, err := kindCur.Object()
	if err != nil {
		return Item{}, err
	}
	if err := obj.DenyUnknown(); err != nil {
		return Item{}, err
	}
	data, err := decodeItemData(kind)
	if err != nil {
		return Item{}, err
	}
	return Item{Name: name, Data: data}, nil
}

func decodeItemData(kind *cursor.Object) (ItemData, error) {
	tagCur, err := kind.Get("tag")
	if err != nil {
		return nil, err
	}
	tag, err := tagCur.Enum(itemTags)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNode:
		filename, err := getFilename(kind)
		if err != nil {
			return nil, err
		}
		kCur, err := kind.Get("kind")
		if err != nil {
			return nil, err
		}
		k, err := kCur.Enum(nodeKindNames)
		if err != nil {
			return nil, err
		}
		if err := kind.DenyUnknown(); err != nil {
			return nil, err
		}
		return NodeRef{Filename: filename, Kind: NodeKind(k)}, nil
	case tagVector, tagText:
		svgCur, err := kind.Get("svg")
		if err != nil {
			return nil, err
		}
		svg, err := svgCur.Str()
		if err != nil {
			return nil, err
		}
		if err := kind.DenyUnknown(); err != nil {
			return nil, err
		}
		return Vector{SVG: svg.Value(), IsText: tag == tagText}, nil
	case tagLayerStyle:
		aslCur, err := kind.Get("asl")
		if err != nil {
			return nil, err
		}
		asl, err := aslCur.Str()
		if err != nil {
			return nil, err
		}
		if err := kind.DenyUnknown(); err != nil {
			return nil, err
		}
		return LayerStyle{ASL: asl.Value()}, nil
	case tagLegacyLayer:
		// Pre-kind index shape: just a filename, implicitly a plain
		// paint layer.
		filename, err := getFilename(kind)
		if err != nil {
			return nil, err
		}
		if err := kind.DenyUnknown(); err != nil {
			return nil, err
		}
		return NodeRef{Filename: filename, Kind: KindLayer}, nil
	}
	panic("unknown item tag")
}

func getFilename(kind *cursor.Object) (int, error) {
	fnCur, err := kind.Get("filename")
	if err != nil {
		return 0, err
	}
	fn, err := fnCur.Int()
	if err != nil {
		return 0, err
	}
	n, err := fn.AtLeast(0)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// EncodeIndex renders the index file bytes for items. Keys are sorted
// and output indented so rewrites diff cleanly.
func EncodeIndex(items []Item) ([]byte, error) {
	entries := make([]any, 0, len(items))
	for _, item := range items {
		entries = append(entries, map[string]any{
			"name": item.Name,
			"kind": encodeItemData(item.Data),
		})
	}
	return oj.Marshal(map[string]any{"items": entries}, &ojg.Options{Sort: true, Indent: 2})
}

func encodeItemData(d ItemData) map[string]any {
	switch d := d.(type) {
	case NodeRef:
		return map[string]any{
			"tag":      "NODE",
			"kind":     d.Kind.String(),
			"filename": int64(d.Filename),
		}
	case Vector:
		tag := "VECTOR"
		if d.IsText {
			tag = "TEXT"
		}
		return map[string]any{"tag": tag, "svg": d.SVG}
	case LayerStyle:
		return map[string]any{"tag": "LAYER_STYLE", "asl": d.ASL}
	}
	panic("unknown item data variant")
}
