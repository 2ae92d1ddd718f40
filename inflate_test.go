package awsbundle

import (
	"reflect"
	"testing"
)

func TestInflateReferencesAndEscapes(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  any
	}{
		{name: "reference", input: "@aws_sdk", want: Reference("aws_sdk")},
		{name: "escaped", input: "@@key", want: "@key"},
		{name: "escaped once only", input: "@@@x", want: "@@x"},
		{name: "bare at", input: "@", want: Reference("")},
		{name: "plain", input: "us-east-1", want: "us-east-1"},
		{name: "embedded at", input: "user@example.com", want: "user@example.com"},
		{name: "number", input: 3, want: 3},
		{name: "list", input: []any{"@a", "@@b", true}, want: []any{Reference("a"), "@b", true}},
		{name: "string list", input: []string{"@a"}, want: []any{Reference("a")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Inflate(map[string]any{"value": tc.input})["value"]
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestInflateLeavesInputUntouched(t *testing.T) {
	input := map[string]any{
		"credentials": map[string]any{"key": "@@key", "secret": "@vault"},
		"S3":          map[string]any{"endpoint": "@@literal"},
	}

	out := Inflate(input)

	creds := input["credentials"].(map[string]any)
	if creds["key"] != "@@key" || creds["secret"] != "@vault" {
		t.Fatalf("input mutated: %#v", creds)
	}
	inflated := out["credentials"].(map[string]any)
	if inflated["key"] != "@key" {
		t.Fatalf("expected escaped key, got %#v", inflated["key"])
	}
	if inflated["secret"] != Reference("vault") {
		t.Fatalf("expected reference, got %#v", inflated["secret"])
	}
	if Inflate(nil) != nil {
		t.Fatalf("expected nil for nil tree")
	}
}

func TestDeflateRestoresConfiguration(t *testing.T) {
	input := map[string]any{
		"credentials": "@aws_sdk",
		"profile":     "@@default",
		"S3":          map[string]any{"ua_append": []any{"@@tag", "@svc"}},
	}

	got := Deflate(Inflate(input))
	if !reflect.DeepEqual(got, input) {
		t.Fatalf("expected %#v, got %#v", input, got)
	}
}

func TestReferencesListsPaths(t *testing.T) {
	tree := Inflate(map[string]any{
		"credentials": "@creds",
		"S3":          map[string]any{"credentials": "@s3_creds", "profile": "@@p"},
		"ua_append":   []any{"plain", "@agent"},
	})

	want := map[string]string{
		"credentials":    "creds",
		"S3.credentials": "s3_creds",
		"ua_append.1":    "agent",
	}
	if got := References(tree); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestReferenceString(t *testing.T) {
	ref := Reference("aws_sdk")
	if ref.ID() != "aws_sdk" || ref.String() != "@aws_sdk" {
		t.Fatalf("unexpected reference rendering %q %q", ref.ID(), ref.String())
	}
}
