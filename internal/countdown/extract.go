package countdown

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/timestamp"
)

// Extract turns the entity list in raw into countdown targets. Items without
// an id or a decodable end time are skipped and counted. An error means the
// list itself is missing or not an array.
func Extract(raw []byte, b model.CountdownBinding, p *timestamp.Parser) ([]Target, int, error) {
	if !gjson.ValidBytes(raw) {
		return nil, 0, fmt.Errorf("countdown: invalid json")
	}

	list := gjson.ParseBytes(raw)
	if b.List != "" {
		list = list.Get(b.List)
	}
	if !list.Exists() {
		return nil, 0, fmt.Errorf("countdown: list %q not found", b.List)
	}
	if !list.IsArray() {
		return nil, 0, fmt.Errorf("countdown: %q is not an array", b.List)
	}

	var (
		targets []Target
		skipped int
	)
	list.ForEach(func(_, item gjson.Result) bool {
		id := item.Get(b.IDField)
		if !id.Exists() || id.String() == "" {
			skipped++
			return true
		}
		end, ok := p.ParseTimestamp(scalar(item.Get(b.EndField)))
		if !ok {
			skipped++
			return true
		}

		t := Target{
			ID:   id.String(),
			Kind: b.Kind,
			End:  end,
		}
		if b.KindField != "" {
			if k := item.Get(b.KindField).String(); k != "" {
				t.Kind = k
			}
		}
		if b.CategoryField != "" {
			t.Category = item.Get(b.CategoryField).String()
		}
		if b.LabelField != "" {
			t.Label = item.Get(b.LabelField).String()
		}
		targets = append(targets, t)
		return true
	})
	return targets, skipped, nil
}

// scalar converts a leaf into a value the timestamp parser accepts.
func scalar(r gjson.Result) any {
	switch r.Type {
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	}
	return nil
}
