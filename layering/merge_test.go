package layering

import (
	"reflect"
	"testing"
)

func TestMergeReplaceKeysDoesNotDeepMerge(t *testing.T) {
	base := map[string]any{
		"debug":  map[string]any{"http": true},
		"region": "us-east-1",
		"http":   map[string]any{"timeout": 3.0, "delay": 1},
	}
	dev := map[string]any{
		"debug": true,
		"http":  map[string]any{"timeout": 1.0},
	}

	got := Merge(ReplaceKeys, base, dev)

	if got["debug"] != true {
		t.Fatalf("expected later scalar to replace nested map, got %#v", got["debug"])
	}
	if got["region"] != "us-east-1" {
		t.Fatalf("expected untouched key to survive, got %#v", got["region"])
	}
	want := map[string]any{"timeout": 1.0}
	if !reflect.DeepEqual(got["http"], want) {
		t.Fatalf("expected http subtree replaced wholesale, got %#v", got["http"])
	}
}

func TestMergeReplaceRootKeepsOnlyLastLayer(t *testing.T) {
	base := map[string]any{"retries": 5, "region": "us-west-2"}
	dev := map[string]any{"debug": true}

	got := Merge(ReplaceRoot, base, dev)
	if !reflect.DeepEqual(got, map[string]any{"debug": true}) {
		t.Fatalf("expected last layer only, got %#v", got)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	base := map[string]any{"credentials": map[string]any{"key": "a"}}
	got := Merge(ReplaceKeys, base)
	got["credentials"].(map[string]any)["key"] = "mutated"
	if base["credentials"].(map[string]any)["key"] != "a" {
		t.Fatalf("merge result must not alias the input layer")
	}
	if empty := Merge(ReplaceKeys); len(empty) != 0 {
		t.Fatalf("expected empty tree for no layers, got %#v", empty)
	}
}

func TestProvenanceTracksWinningLayer(t *testing.T) {
	layers := []Layer{
		NewLayer("config", map[string]any{"region": "eu-west-1", "retries": 3}),
		NewLayer("config_dev", map[string]any{"region": "us-east-1"}),
	}

	got := Provenance(ReplaceKeys, layers...)
	want := map[string]string{"region": "config_dev", "retries": "config"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected provenance: %#v", got)
	}

	root := Provenance(ReplaceRoot, layers...)
	if !reflect.DeepEqual(root, map[string]string{"region": "config_dev"}) {
		t.Fatalf("unexpected root provenance: %#v", root)
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]Policy{"": ReplaceKeys, "replace-keys": ReplaceKeys, "ROOT": ReplaceRoot}
	for input, want := range cases {
		got, err := ParsePolicy(input)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("expected %s for %q, got %s", want, input, got)
		}
	}
	if _, err := ParsePolicy("deep"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestLookupAndAnonymous(t *testing.T) {
	layers := Anonymous(map[string]any{"http": map[string]any{"timeout": 2.5}})
	if layers[0].Name != "layer[0]" {
		t.Fatalf("unexpected anonymous name %q", layers[0].Name)
	}
	value, ok := Lookup(layers[0].Tree, "http.timeout")
	if !ok || value != 2.5 {
		t.Fatalf("expected lookup to find 2.5, got %#v (%v)", value, ok)
	}
	if _, ok := Lookup(layers[0].Tree, "http.timeout.deeper"); ok {
		t.Fatalf("lookup through a scalar must fail")
	}
}
