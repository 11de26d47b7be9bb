package toolcall

// BlockPredicate reports whether a content item has a particular block shape.
type BlockPredicate func(item any) bool

// AnyOf matches an item when at least one predicate matches.
func AnyOf(predicates ...BlockPredicate) BlockPredicate {
	return func(item any) bool {
		for _, predicate := range predicates {
			if predicate(item) {
				return true
			}
		}
		return false
	}
}

// IsImageBlock recognizes a canonical image block: an ImageBlock value or an
// object with type "image" and a string data field. The MIME type is optional.
func IsImageBlock(item any) bool {
	_, ok := imageBlockOf(item)
	return ok
}

// IsTextBlock recognizes a canonical text block.
func IsTextBlock(item any) bool {
	_, ok := textBlockOf(item)
	return ok
}

// HasImageContent reports whether content is an array with at least one
// element matching the predicate. IsImageBlock is used when no predicate is
// given. Non-array content never has images.
func HasImageContent(content any, predicate ...BlockPredicate) bool {
	items, ok := contentItems(content)
	if !ok {
		return false
	}

	match := BlockPredicate(IsImageBlock)
	if len(predicate) > 0 {
		match = AnyOf(predicate...)
	}

	for _, item := range items {
		if match(item) {
			return true
		}
	}
	return false
}

// contentItems returns the elements of array-shaped content.
func contentItems(content any) ([]any, bool) {
	switch c := content.(type) {
	case []any:
		return c, true
	case []ContentBlock:
		items := make([]any, len(c))
		for i, block := range c {
			items[i] = block
		}
		return items, true
	case []map[string]any:
		items := make([]any, len(c))
		for i, block := range c {
			items[i] = block
		}
		return items, true
	case []TextBlock:
		items := make([]any, len(c))
		for i, block := range c {
			items[i] = block
		}
		return items, true
	case []ImageBlock:
		items := make([]any, len(c))
		for i, block := range c {
			items[i] = block
		}
		return items, true
	}
	return nil, false
}

func imageBlockOf(item any) (ImageBlock, bool) {
	switch b := item.(type) {
	case ImageBlock:
		return b, true
	case *ImageBlock:
		if b == nil {
			return ImageBlock{}, false
		}
		return *b, true
	case map[string]any:
		if b["type"] != string(ContentBlockTypeImage) {
			return ImageBlock{}, false
		}
		data, ok := b["data"].(string)
		if !ok {
			return ImageBlock{}, false
		}
		mimeType, _ := b["mimeType"].(string)
		return ImageBlock{Data: data, MimeType: mimeType}, true
	}
	return ImageBlock{}, false
}

func textBlockOf(item any) (TextBlock, bool) {
	switch b := item.(type) {
	case TextBlock:
		return b, true
	case *TextBlock:
		if b == nil {
			return TextBlock{}, false
		}
		return *b, true
	case map[string]any:
		if b["type"] != string(ContentBlockTypeText) {
			return TextBlock{}, false
		}
		text, ok := b["text"].(string)
		if !ok {
			return TextBlock{}, false
		}
		return TextBlock{Text: text}, true
	}
	return TextBlock{}, false
}

func objectOf(item any) (map[string]any, bool) {
	m, ok := item.(map[string]any)
	return m, ok
}
