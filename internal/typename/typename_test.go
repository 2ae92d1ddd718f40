package typename

import (
	"reflect"
	"testing"
)

type sample struct{}

func TestOfQualifiesNamedTypes(t *testing.T) {
	got := For[*sample]()
	want := "*github.com/goliatone/go-aws-bundle/internal/typename.sample"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestOfFallsBackForUnnamedTypes(t *testing.T) {
	if got := Of(reflect.TypeOf(map[string]any{})); got != "map[string]interface {}" {
		t.Fatalf("unexpected unnamed type name %q", got)
	}
	if got := Of(nil); got != "<nil>" {
		t.Fatalf("expected <nil>, got %q", got)
	}
	if got := For[int](); got != "int" {
		t.Fatalf("expected builtin name, got %q", got)
	}
}
