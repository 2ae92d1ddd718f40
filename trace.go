package awsbundle

import (
	json "github.com/goccy/go-json"
)

// Trace explains where the effective value of an option path came from.
type Trace struct {
	Path   string       `json:"path"`
	Policy string       `json:"policy"`
	Value  any          `json:"value,omitempty"`
	Found  bool         `json:"found"`
	Layers []Provenance `json:"layers"`
}

// Provenance details what a single layer held for the traced path.
type Provenance struct {
	Layer     string `json:"layer"`
	Source    string `json:"source,omitempty"`
	Value     any    `json:"value,omitempty"`
	Found     bool   `json:"found"`
	Effective bool   `json:"effective"`
}

// EffectiveLayer returns the layer that supplied the value, if any.
func (t Trace) EffectiveLayer() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Effective {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace for logs and the explain command.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON decodes a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
