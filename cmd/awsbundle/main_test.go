package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	err := run(out, errOut, args)
	return out.String(), err
}

func TestValidateLoadsEnvironmentOverlays(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "aws.yaml", "aws:\n  region: us-east-1\n")
	writeConfig(t, dir, "aws_prod.yaml", "aws:\n  S3:\n    region: eu-west-1\n")

	out, err := execute(t, "validate", "--dir", dir, "--env", "prod")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "configuration valid") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateReportsUnknownOptions(t *testing.T) {
	dir := t.TempDir()
	file := writeConfig(t, dir, "aws.yaml", "foo: bar\n")

	_, err := execute(t, "validate", "-f", file)
	if err == nil || !strings.Contains(err.Error(), `unrecognized option "foo"`) {
		t.Fatalf("expected unknown option error, got %v", err)
	}
}

func TestEnvironmentVariablesConfigureCommands(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "aws.yaml", "region: us-east-1\nretries: 1\n")
	writeConfig(t, dir, "aws_prod.yaml", "retries: 4\n")
	t.Setenv("AWSBUNDLE_ENV", "prod")
	t.Setenv("AWSBUNDLE_MERGE_POLICY", "replace-root")

	out, err := execute(t, "debug-config", "--dir", dir, "--format", "json")
	if err != nil {
		t.Fatalf("debug-config: %v", err)
	}
	var payload struct {
		AWS        map[string]any    `json:"aws"`
		Provenance map[string]string `json:"provenance"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if _, ok := payload.AWS["region"]; ok {
		t.Fatalf("replace-root must drop the base layer, got %v", payload.AWS)
	}
	if payload.AWS["retries"] != float64(4) || payload.Provenance["retries"] != "aws@prod" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDebugConfigDeflatesReferences(t *testing.T) {
	dir := t.TempDir()
	file := writeConfig(t, dir, "aws.yaml", "credentials: \"@aws_sdk\"\nprofile: \"@@literal\"\n")

	out, err := execute(t, "debug-config", "-f", file)
	if err != nil {
		t.Fatalf("debug-config: %v", err)
	}
	var payload map[string]map[string]any
	if err := yaml.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if payload["aws"]["credentials"] != "@aws_sdk" || payload["aws"]["profile"] != "@@literal" {
		t.Fatalf("unexpected dump %v", payload["aws"])
	}
	if _, ok := payload["aws"]["ua_append"]; !ok {
		t.Fatalf("expected ua_append in dump")
	}
}

func TestExplainPrintsTrace(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "aws.yaml", "region: us-east-1\n")
	override := writeConfig(t, dir, "override.json", `{"region": "eu-west-1"}`)

	out, err := execute(t, "explain", "aws.region", "-f", base, "-f", override)
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	var trace struct {
		Value  string `json:"value"`
		Layers []struct {
			Layer     string `json:"layer"`
			Effective bool   `json:"effective"`
		} `json:"layers"`
	}
	if err := json.Unmarshal([]byte(out), &trace); err != nil {
		t.Fatalf("decode trace: %v", err)
	}
	if trace.Value != "eu-west-1" || len(trace.Layers) != 2 || !trace.Layers[1].Effective || trace.Layers[1].Layer != "override" {
		t.Fatalf("unexpected trace %+v", trace)
	}
}

func TestDumpReference(t *testing.T) {
	out, err := execute(t, "dump-reference", "--format", "json")
	if err != nil {
		t.Fatalf("dump-reference: %v", err)
	}
	if !strings.Contains(out, `"aws.http.timeout"`) {
		t.Fatalf("expected descriptor paths, got %q", out)
	}

	out, err = execute(t, "dump-reference", "--schema", "openapi")
	if err != nil {
		t.Fatalf("dump-reference openapi: %v", err)
	}
	if !strings.Contains(out, "ServiceOptions") || !strings.Contains(out, "openapi: 3.0.3") {
		t.Fatalf("expected openapi document, got %q", out)
	}

	if _, err := execute(t, "dump-reference", "--schema", "xml"); err == nil {
		t.Fatalf("expected unsupported schema error")
	}
}

func TestServicesListsRegistrations(t *testing.T) {
	out, err := execute(t, "services")
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	for _, want := range []string{"aws.s3", "*github.com/aws/aws-sdk-go-v2/service/s3.Client", "aws.lambda", "GenericClient"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestInvalidLogLevel(t *testing.T) {
	if _, err := execute(t, "services", "--log-level", "loud"); err == nil {
		t.Fatalf("expected invalid log level error")
	}
}

func TestStrictAppliesStockRules(t *testing.T) {
	dir := t.TempDir()
	file := writeConfig(t, dir, "aws.yaml", "scheme: ftp\n")

	if _, err := execute(t, "validate", "-f", file); err != nil {
		t.Fatalf("expected free-form scheme accepted, got %v", err)
	}
	_, err := execute(t, "validate", "--strict", "-f", file)
	if err == nil || !strings.Contains(err.Error(), `"aws.scheme"`) {
		t.Fatalf("expected strict mode to reject aws.scheme, got %v", err)
	}
}

func TestSetWritesValidatedLayers(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "aws.yaml", "region: us-east-1\n")

	steps := [][]string{
		{"set", "retries", "3", "--dir", dir},
		{"set", "credentials", "@aws_sdk", "--dir", dir},
		{"set", "aws.S3.region", "eu-west-1", "--target-env", "prod", "--dir", dir},
	}
	for _, args := range steps {
		if out, err := execute(t, args...); err != nil || !strings.Contains(out, "updated") {
			t.Fatalf("%v: out=%q err=%v", args, out, err)
		}
	}

	data, err := os.ReadFile(base)
	if err != nil {
		t.Fatalf("read base: %v", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		t.Fatalf("decode base: %v", err)
	}
	if tree["region"] != "us-east-1" || tree["retries"] != 3 || tree["credentials"] != "@aws_sdk" {
		t.Fatalf("unexpected base file %v", tree)
	}

	out, err := execute(t, "debug-config", "--dir", dir, "--env", "prod", "--format", "json")
	if err != nil {
		t.Fatalf("debug-config: %v", err)
	}
	var payload struct {
		AWS map[string]any `json:"aws"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	s3Block, _ := payload.AWS["S3"].(map[string]any)
	if s3Block["region"] != "eu-west-1" || payload.AWS["credentials"] != "@aws_sdk" {
		t.Fatalf("unexpected processed config %v", payload.AWS)
	}

	if _, err := execute(t, "set", "retries", "--unset", "--dir", dir); err != nil {
		t.Fatalf("unset: %v", err)
	}
	data, _ = os.ReadFile(base)
	if strings.Contains(string(data), "retries") {
		t.Fatalf("expected retries removed, got %s", data)
	}
}

func TestSetRejectsInvalidEdits(t *testing.T) {
	dir := t.TempDir()
	base := writeConfig(t, dir, "aws.yaml", "region: us-east-1\n")

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown option", args: []string{"set", "foo", "bar"}, want: `unrecognized option "foo"`},
		{name: "wrong type", args: []string{"set", "http.debug", "yes please"}, want: `"aws.http.debug"`},
		{name: "stale etag", args: []string{"set", "region", "eu-west-1", "--if-match", "stale"}, want: "etag mismatch"},
		{name: "missing value", args: []string{"set", "region"}, want: "needs a value"},
		{name: "empty segment", args: []string{"set", "S3..region", "x"}, want: "invalid option path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, append(tc.args, "--dir", dir)...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
			data, _ := os.ReadFile(base)
			if string(data) != "region: us-east-1\n" {
				t.Fatalf("base file changed: %q", data)
			}
		})
	}
}
