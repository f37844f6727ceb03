package detector

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/crisisobs/shockwatch/internal/model"
)

// Reserved path literals that bypass JSON traversal and read record
// fallback fields instead.
const (
	pathTextFallback     = "text_fallback"
	pathLocationFallback = "location_fallback"
)

// pathSegment is one step of a compiled field path: a key lookup plus an
// optional array index.
type pathSegment struct {
	field   string
	index   int
	indexed bool
}

// fieldPath is the compiled form of a dotted/bracketed path expression
// such as "alertType.name" or "estimatedEventLocation[0]". Paths compile
// once at configuration load; extraction is a pure function over a record.
type fieldPath struct {
	raw      string
	segments []pathSegment
}

// compilePath parses a path expression into segment descriptors. A
// malformed bracket index is a configuration error and is rejected here
// rather than silently yielding nulls per record.
func compilePath(raw string) (*fieldPath, error) {
	p := &fieldPath{raw: raw}
	if raw == "" {
		return nil, eris.New("path: empty expression")
	}
	if raw == pathTextFallback || raw == pathLocationFallback {
		return p, nil
	}

	for _, part := range strings.Split(raw, ".") {
		open := strings.IndexByte(part, '[')
		if open < 0 || !strings.Contains(part, "]") {
			p.segments = append(p.segments, pathSegment{field: part})
			continue
		}
		end := strings.IndexByte(part, ']')
		if end < open {
			return nil, eris.Errorf("path: malformed segment %q in %q", part, raw)
		}
		idx, err := strconv.Atoi(part[open+1 : end])
		if err != nil {
			return nil, eris.Wrapf(err, "path: non-numeric index in segment %q of %q", part, raw)
		}
		p.segments = append(p.segments, pathSegment{field: part[:open], index: idx, indexed: true})
	}
	return p, nil
}

// Extract resolves the path against a record's raw data. All failure
// modes (missing key, wrong type, out-of-range index) return nil; nothing
// panics. rec may be nil, in which case the fallback literals also
// resolve to nil.
func (p *fieldPath) Extract(raw map[string]any, rec *model.RawRecord) any {
	switch p.raw {
	case pathTextFallback:
		if rec == nil {
			return nil
		}
		return rec.Text
	case pathLocationFallback:
		if rec == nil {
			return nil
		}
		return rec.OriginalLocationText
	}

	// A top-level key holding an array is returned whole so that
	// contains rules can scan it without indexing.
	if v, ok := raw[p.raw]; ok {
		if arr, ok := v.([]any); ok {
			return arr
		}
	}

	var cur any = raw
	for _, seg := range p.segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := m[seg.field]
		if !ok {
			return nil
		}
		if !seg.indexed {
			cur = v
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		if seg.index < 0 || seg.index >= len(arr) {
			return nil
		}
		cur = arr[seg.index]
	}
	return cur
}

// leafName reduces a path to the simplified name used when storing
// relevant raw fields on a detection: the last dotted segment with any
// bracket suffix stripped.
func leafName(raw string) string {
	parts := strings.Split(raw, ".")
	last := parts[len(parts)-1]
	if open := strings.IndexByte(last, '['); open >= 0 {
		return last[:open]
	}
	return last
}
