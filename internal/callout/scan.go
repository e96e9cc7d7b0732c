package callout

import "bytes"

// Scan splits doc into plain text and callout block segments.
//
// A block starts on a line that is exactly an opening marker and ends on the
// first following line that is a closing marker of the same variant. Blocks
// of the same variant do not nest: an inner opener is plain content and the
// first closer ends the outer block. An opener without a closer is left as
// plain text.
func Scan(doc []byte) []Segment {
	var segs []Segment

	textStart := 0
	pos := 0
	for pos < len(doc) {
		line, next := nextLine(doc, pos)

		v, id, ok := parseOpener(line)
		if !ok {
			pos = next
			continue
		}

		end, closeStart, found := findCloser(doc, next, v)
		if !found {
			pos = next
			continue
		}

		if pos > textStart {
			segs = append(segs, Segment{Source: doc[textStart:pos]})
		}
		segs = append(segs, Segment{
			Source: doc[pos:end],
			Block: &Block{
				ID:      id,
				Variant: v,
				Raw:     doc[next:closeStart],
			},
		})

		textStart = end
		pos = end
	}

	if textStart < len(doc) {
		segs = append(segs, Segment{Source: doc[textStart:]})
	}

	return segs
}

// findCloser looks for the first closing marker of v starting at from.
// It returns the end of the closing line (terminator excluded) and the
// start of that line.
func findCloser(doc []byte, from int, v Variant) (end, lineStart int, found bool) {
	cur := from
	for cur < len(doc) {
		line, next := nextLine(doc, cur)
		if isCloser(line, v) {
			return cur + len(line), cur, true
		}
		cur = next
	}
	return 0, 0, false
}

// nextLine returns the line starting at pos without its "\n" and the offset
// of the following line.
func nextLine(doc []byte, pos int) ([]byte, int) {
	i := bytes.IndexByte(doc[pos:], '\n')
	if i < 0 {
		return doc[pos:], len(doc)
	}
	return doc[pos : pos+i], pos + i + 1
}

func parseOpener(line []byte) (Variant, string, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	for _, v := range variants {
		id, ok := markerID(line, "[!"+v.String()+":")
		if ok {
			return v, string(id), true
		}
	}
	return 0, "", false
}

func isCloser(line []byte, v Variant) bool {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if string(line) == "[/!"+v.String()+"]" {
		return true
	}
	_, ok := markerID(line, "[/!"+v.String()+":")
	return ok
}

func markerID(line []byte, prefix string) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte(prefix)) || !bytes.HasSuffix(line, []byte("]")) {
		return nil, false
	}
	if len(line) < len(prefix)+1 {
		return nil, false
	}
	id := line[len(prefix) : len(line)-1]
	if !validID(id) {
		return nil, false
	}
	return id, true
}
