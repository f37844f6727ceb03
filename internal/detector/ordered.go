package detector

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// pair is one key/value entry of an ordered mapping.
type pair struct {
	Key   string
	Value any
}

// pairs decodes a JSON or YAML mapping while preserving document order.
// Location multipliers and shock-type rules are first-match-wins, so the
// order configured by the analyst must survive decoding. Values decode
// loosely into any (nested objects become map[string]any).
type pairs []pair

// UnmarshalJSON decodes via the token stream; plain map decoding would
// lose key order.
func (p *pairs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "ordered: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.Errorf("ordered: expected object, got %v", tok)
	}

	out := pairs{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "ordered: read key")
		}
		key, ok := keyTok.(string)
		if !ok {
			return eris.Errorf("ordered: non-string key %v", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return eris.Wrapf(err, "ordered: decode value for %q", key)
		}
		out = append(out, pair{Key: key, Value: val})
	}
	*p = out
	return nil
}

// UnmarshalYAML walks the mapping node directly; yaml.Node preserves
// document order where map[string]any does not.
func (p *pairs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return eris.Errorf("ordered: expected mapping, got yaml kind %d", node.Kind)
	}
	out := pairs{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var val any
		if err := node.Content[i+1].Decode(&val); err != nil {
			return eris.Wrapf(err, "ordered: decode value for %q", node.Content[i].Value)
		}
		out = append(out, pair{Key: node.Content[i].Value, Value: val})
	}
	*p = out
	return nil
}
