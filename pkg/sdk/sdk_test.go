package sdk

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func isolateSharedConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
}

func TestManifestIsSortedAndComplete(t *testing.T) {
	descriptors := Manifest()
	if len(descriptors) == 0 {
		t.Fatalf("expected embedded manifest entries")
	}
	for i := 1; i < len(descriptors); i++ {
		if descriptors[i-1].Name >= descriptors[i].Name {
			t.Fatalf("manifest not sorted at %d: %q >= %q", i, descriptors[i-1].Name, descriptors[i].Name)
		}
	}
	s3Descriptor, ok := FindNamespace(descriptors, "S3")
	if !ok || s3Descriptor.Name != "s3" || s3Descriptor.LatestVersion() != "2006-03-01" {
		t.Fatalf("unexpected S3 descriptor: %+v", s3Descriptor)
	}

	descriptors[0].Namespace = "Mutated"
	if Manifest()[0].Namespace == "Mutated" {
		t.Fatalf("Manifest must return a copy")
	}
}

func TestParseManifestRejectsMissingNamespace(t *testing.T) {
	if _, err := ParseManifest([]byte(`{"s3":{"versions":{"latest":"x"}}}`)); err == nil {
		t.Fatalf("expected error for entry without namespace")
	}
	if _, err := ParseManifest([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCatalogRegisterGuardsDuplicates(t *testing.T) {
	catalog := DefaultCatalog()
	err := catalog.Register(Client("S3", func(aws.Config, ClientConfig) *s3.Client { return nil }))
	if err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := catalog.Register(ClientSpec{Namespace: "Lambda"}); err == nil {
		t.Fatalf("expected error for spec without constructor")
	}

	name, ok := catalog.TypeName("S3")
	if !ok || name != "*github.com/aws/aws-sdk-go-v2/service/s3.Client" {
		t.Fatalf("unexpected S3 type name %q (%v)", name, ok)
	}
	name, ok = catalog.TypeName("Lambda")
	if ok || name != "*github.com/goliatone/go-aws-bundle/pkg/sdk.GenericClient" {
		t.Fatalf("unexpected fallback type name %q (%v)", name, ok)
	}

	clone := catalog.Clone()
	if !reflect.DeepEqual(clone.Names(), catalog.Names()) {
		t.Fatalf("clone names differ: %v vs %v", clone.Names(), catalog.Names())
	}
}

func TestServiceArgsAppliesNamespaceOverrides(t *testing.T) {
	factory := NewFactory(map[string]any{
		"region":  "eu-west-1",
		"retries": 2,
		"S3":      map[string]any{"region": "us-west-2", "use_path_style": true},
		"Lambda":  map[string]any{"retries": 0},
	})

	args, err := factory.ServiceArgs("S3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]any{"region": "us-west-2", "retries": 2, "use_path_style": true}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected service args: %#v", args)
	}

	if _, err := factory.ServiceArgs("Nope"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
}

func TestClientConfigSplitsOpaqueOptions(t *testing.T) {
	factory := NewFactory(map[string]any{
		"region":      "eu-west-1",
		"endpoint":    "localhost:4566",
		"scheme":      "http",
		"credentials": map[string]any{"key": "k", "secret": "s"},
		"ua_append":   []any{"awsbundle/test", "app/1"},
		"http":        map[string]any{"timeout": 2.5, "verify": false},
		"S3":          map[string]any{"use_path_style": true},
	})

	client, err := factory.ClientConfig("S3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Region != "eu-west-1" || client.ResolvedEndpoint() != "http://localhost:4566" {
		t.Fatalf("unexpected typed fields: %+v", client)
	}
	if client.HTTP.Timeout == nil || *client.HTTP.Timeout != 2.5 || client.HTTP.Verify != false {
		t.Fatalf("unexpected http config: %+v", client.HTTP)
	}
	if !reflect.DeepEqual(client.UserAgent, []string{"awsbundle/test", "app/1"}) {
		t.Fatalf("unexpected user agent keys: %v", client.UserAgent)
	}
	if !reflect.DeepEqual(client.Extra, map[string]any{"use_path_style": true}) {
		t.Fatalf("unexpected extras: %#v", client.Extra)
	}
	if _, ok := client.Credentials.(map[string]any); !ok {
		t.Fatalf("expected raw credentials map, got %T", client.Credentials)
	}
}

func TestClientConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		args map[string]any
	}{
		{name: "negative retries", args: map[string]any{"retries": -1}},
		{name: "bad scheme", args: map[string]any{"scheme": "ftp"}},
		{name: "negative timeout", args: map[string]any{"http": map[string]any{"timeout": -1.0}}},
		{name: "wrong type", args: map[string]any{"region": map[string]any{"a": 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFactory(tc.args).ClientConfig("S3"); err == nil {
				t.Fatalf("expected error for %v", tc.args)
			}
		})
	}
}

func TestCreateClientBuildsConcreteClient(t *testing.T) {
	isolateSharedConfig(t)
	factory := NewFactory(map[string]any{
		"region":      "eu-west-1",
		"retries":     3,
		"credentials": map[string]any{"key": "AKID", "secret": "SECRET", "token": "TOKEN"},
		"S3":          map[string]any{"region": "us-west-2", "use_path_style": true},
	})

	client, err := factory.CreateClient(context.Background(), "S3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s3Client, ok := client.(*s3.Client)
	if !ok {
		t.Fatalf("expected *s3.Client, got %T", client)
	}
	options := s3Client.Options()
	if options.Region != "us-west-2" || !options.UsePathStyle {
		t.Fatalf("unexpected s3 options region=%q path=%v", options.Region, options.UsePathStyle)
	}

	cfg, _, err := factory.Config(context.Background(), "DynamoDb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RetryMaxAttempts != 4 {
		t.Fatalf("expected 4 max attempts, got %d", cfg.RetryMaxAttempts)
	}
	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("unexpected credentials error: %v", err)
	}
	if creds.AccessKeyID != "AKID" || creds.SecretAccessKey != "SECRET" || creds.SessionToken != "TOKEN" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}

	ddb, err := factory.CreateClient(context.Background(), "DynamoDb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ddb.(*dynamodb.Client); !ok {
		t.Fatalf("expected *dynamodb.Client, got %T", ddb)
	}
}

func TestCreateClientFallsBackToGenericClient(t *testing.T) {
	isolateSharedConfig(t)
	factory := NewFactory(map[string]any{
		"region":      "ap-south-1",
		"credentials": false,
		"endpoint":    "https://lambda.local",
		"Lambda":      map[string]any{"function_prefix": "svc-"},
	})

	client, err := factory.CreateClient(context.Background(), "Lambda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	generic, ok := client.(*GenericClient)
	if !ok {
		t.Fatalf("expected *GenericClient, got %T", client)
	}
	if generic.Namespace != "Lambda" || generic.Config.Region != "ap-south-1" {
		t.Fatalf("unexpected generic client: %+v", generic)
	}
	if generic.Config.BaseEndpoint == nil || *generic.Config.BaseEndpoint != "https://lambda.local" {
		t.Fatalf("unexpected base endpoint: %v", generic.Config.BaseEndpoint)
	}
	if !aws.IsCredentialsProvider(generic.Config.Credentials, aws.AnonymousCredentials{}) {
		t.Fatalf("expected anonymous credentials, got %T", generic.Config.Credentials)
	}
	if generic.Options.Extra["function_prefix"] != "svc-" {
		t.Fatalf("expected service extras on generic client, got %#v", generic.Options.Extra)
	}
}

func TestCreateClientRejectsUnsupportedCredentials(t *testing.T) {
	isolateSharedConfig(t)
	cases := []any{42, "plain-string", map[string]any{"key": "only-key"}}
	for _, value := range cases {
		factory := NewFactory(map[string]any{"region": "eu-west-1", "credentials": value})
		_, err := factory.CreateClient(context.Background(), "S3")
		if !errors.Is(err, ErrUnsupportedCredentials) {
			t.Fatalf("expected ErrUnsupportedCredentials for %#v, got %v", value, err)
		}
	}
}

func TestClientLogModeAndEndpointDiscovery(t *testing.T) {
	if mode := clientLogMode(nil, false); mode != 0 {
		t.Fatalf("expected no log mode, got %v", mode)
	}
	if mode := clientLogMode(true, false); !mode.IsRequest() || !mode.IsRetries() {
		t.Fatalf("expected request and retry logging, got %v", mode)
	}
	if mode := clientLogMode(map[string]any{"http": true}, false); !mode.IsRequestWithBody() {
		t.Fatalf("expected body logging, got %v", mode)
	}

	if state, ok := endpointDiscovery(true); !ok || state != aws.EndpointDiscoveryEnabled {
		t.Fatalf("unexpected discovery state %v", state)
	}
	if state, ok := endpointDiscovery(map[string]any{"enabled": false}); !ok || state != aws.EndpointDiscoveryDisabled {
		t.Fatalf("unexpected discovery state %v", state)
	}
	if _, ok := endpointDiscovery(nil); ok {
		t.Fatalf("expected unset discovery")
	}
}

func TestLoggerAdapterRoutesClassifications(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewLogger(zap.New(core))

	logger.Logf(logging.Warn, "retrying %d", 2)
	logger.Logf(logging.Debug, "request %s", "sent")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zap.WarnLevel || entries[0].Message != "retrying 2" {
		t.Fatalf("unexpected warn entry: %+v", entries[0])
	}
	if entries[1].Level != zap.DebugLevel || entries[1].LoggerName != "aws" {
		t.Fatalf("unexpected debug entry: %+v", entries[1])
	}
}
