package main

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	awsbundle "github.com/goliatone/go-aws-bundle"
	"github.com/goliatone/go-aws-bundle/layering"
	"github.com/goliatone/go-aws-bundle/pkg/container"
	"github.com/goliatone/go-aws-bundle/pkg/source"
	"github.com/goliatone/go-aws-bundle/schema/openapi"
)

func (a *app) stringList(key string) []string {
	var out []string
	for _, entry := range a.v.GetStringSlice(key) {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (a *app) extension() (*awsbundle.Extension, error) {
	policy, err := layering.ParsePolicy(a.v.GetString("merge-policy"))
	if err != nil {
		return nil, err
	}
	opts := []awsbundle.Option{
		awsbundle.WithLogger(a.logger),
		awsbundle.WithMergePolicy(policy),
		awsbundle.WithUserAgent(a.stringList("user-agent")...),
		awsbundle.WithFunctionRegistry(awsbundle.BuiltinFunctions()),
	}
	if a.v.GetBool("strict") {
		opts = append(opts, awsbundle.WithRules(awsbundle.DefaultRules()...))
	}
	return awsbundle.New(opts...)
}

func (a *app) store() source.Store {
	return source.NewFileStore(a.v.GetString("dir"))
}

func (a *app) layers(ctx context.Context) ([]layering.Layer, error) {
	if files := a.stringList("file"); len(files) > 0 {
		return source.ReadFiles(files...)
	}
	resolver := source.Resolver{
		Store:  a.store(),
		Logger: a.logger,
	}
	return resolver.Resolve(ctx, a.v.GetString("name"), a.stringList("env")...)
}

func (a *app) load(ctx context.Context) (*awsbundle.Extension, *container.Registry, *awsbundle.Report, error) {
	ext, err := a.extension()
	if err != nil {
		return nil, nil, nil, err
	}
	layers, err := a.layers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	registry := container.New(container.WithLogger(a.logger))
	report, err := ext.LoadLayers(ctx, registry, layers...)
	if err != nil {
		return nil, nil, nil, err
	}
	return ext, registry, report, nil
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration layers and register every client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, registry, report, err := a.load(ctx)
			if err != nil {
				return err
			}

			if a.v.GetBool("strict") {
				for _, service := range report.Services {
					if _, err := registry.Get(ctx, service.ID); err != nil {
						return fmt.Errorf("build %s: %w", service.ID, err)
					}
					a.logger.Debug("client built", zap.String("id", service.ID))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d services registered (load %s)\n", len(report.Services), report.LoadID)
			return nil
		},
	}
}

func (a *app) setCommand() *cobra.Command {
	var (
		targetEnv string
		ifMatch   string
		unset     bool
	)
	cmd := &cobra.Command{
		Use:   "set <path> [value]",
		Short: "Write one option into the base file or an environment overlay",
		Long: "Values are parsed as YAML scalars or flow collections, so 5, true, " +
			"[a, b] and {key: x} keep their types; values starting with @ are kept " +
			"as reference tokens. The edited file is validated against the option " +
			"schema before it is written.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unset != (len(args) == 1) {
				return fmt.Errorf("set needs a value, or --unset without one")
			}
			segments, err := optionPath(args[0])
			if err != nil {
				return err
			}
			var value any
			if !unset {
				if value, err = parseValue(args[1]); err != nil {
					return err
				}
			}

			ext, err := a.extension()
			if err != nil {
				return err
			}
			resolver := source.Resolver{Store: a.store(), Logger: a.logger}
			ref := source.Ref{Name: a.v.GetString("name"), Env: targetEnv}
			_, meta, err := resolver.Mutate(cmd.Context(), ref, source.Meta{ETag: ifMatch}, ext.Schema(), func(tree map[string]any) error {
				if unset {
					unsetPath(tree, segments)
					return nil
				}
				return setPath(tree, segments, value)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s in %s (etag %s)\n", args[0], meta.Source, meta.ETag)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetEnv, "target-env", "", "Environment overlay to edit (empty edits the base file)")
	cmd.Flags().StringVar(&ifMatch, "if-match", "", "Only write when the stored file has this etag")
	cmd.Flags().BoolVar(&unset, "unset", false, "Remove the option instead of setting it")
	return cmd
}

// parseValue decodes raw as YAML. Reference tokens start with "@", which YAML
// reserves, so they stay strings.
func parseValue(raw string) (any, error) {
	if strings.HasPrefix(raw, "@") {
		return raw, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("parse value %q: %w", raw, err)
	}
	return value, nil
}

func optionPath(path string) ([]string, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), awsbundle.RootName+".")
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return nil, fmt.Errorf("invalid option path %q", path)
		}
	}
	return segments, nil
}

func setPath(tree map[string]any, segments []string, value any) error {
	current := tree
	for i, segment := range segments[:len(segments)-1] {
		next, ok := current[segment]
		if !ok || next == nil {
			child := map[string]any{}
			current[segment] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is %T, not a block", strings.Join(segments[:i+1], "."), next)
		}
		current = child
	}
	current[segments[len(segments)-1]] = value
	return nil
}

func unsetPath(tree map[string]any, segments []string) {
	current := tree
	for _, segment := range segments[:len(segments)-1] {
		child, ok := current[segment].(map[string]any)
		if !ok {
			return
		}
		current = child
	}
	delete(current, segments[len(segments)-1])
}

func (a *app) debugConfigCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "debug-config",
		Short: "Print the processed configuration passed to the SDK factory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, report, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			payload := map[string]any{
				awsbundle.RootName: awsbundle.Deflate(report.Config),
			}
			if format == "json" {
				payload["provenance"] = report.Provenance
			}
			return writeDocument(cmd, format, payload)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (yaml, json)")
	return cmd
}

func (a *app) explainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <path>",
		Short: "Show which layer supplied an option, for example S3.region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := a.extension()
			if err != nil {
				return err
			}
			layers, err := a.layers(cmd.Context())
			if err != nil {
				return err
			}
			trace, err := ext.Explain(args[0], layers...)
			if err != nil {
				return err
			}
			payload, err := trace.ToJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
}

func (a *app) dumpReferenceCommand() *cobra.Command {
	var format, schemaFormat string
	cmd := &cobra.Command{
		Use:   "dump-reference",
		Short: "Print the recognized options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := a.extension()
			if err != nil {
				return err
			}
			var generator awsbundle.SchemaGenerator
			switch awsbundle.SchemaFormat(schemaFormat) {
			case awsbundle.SchemaFormatDescriptors:
				generator = awsbundle.DescriptorGenerator()
			case awsbundle.SchemaFormatOpenAPI:
				generator = openapi.NewGenerator()
			default:
				return fmt.Errorf("unsupported schema format %q", schemaFormat)
			}
			doc, err := ext.SchemaDocument(generator)
			if err != nil {
				return err
			}
			return writeDocument(cmd, format, doc.Document)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format (yaml, json)")
	cmd.Flags().StringVar(&schemaFormat, "schema", string(awsbundle.SchemaFormatDescriptors), "Reference format (descriptors, openapi)")
	return cmd
}

func (a *app) servicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the client registrations the bundle creates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ext, err := a.extension()
			if err != nil {
				return err
			}
			registry := container.New()
			if err := ext.Load(cmd.Context(), registry); err != nil {
				return err
			}

			aliases := registry.Aliases()
			classes := make([]string, 0, len(aliases))
			for class := range aliases {
				classes = append(classes, class)
			}
			sort.Strings(classes)
			resolvedBy := map[string]string{}
			for _, class := range classes {
				resolvedBy[aliases[class]] = class
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAMESPACE\tCLASS\tALIAS")
			for _, descriptor := range ext.Manifest() {
				id := ext.ServiceID(descriptor.Namespace)
				class, err := registry.Class(id)
				if err != nil {
					return err
				}
				alias := "-"
				if resolvedBy[id] == class {
					alias = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, descriptor.Namespace, class, alias)
			}
			return w.Flush()
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "awsbundle v%s (%s)\n", awsbundle.Version, runtime.Version())
		},
	}
}

func writeDocument(cmd *cobra.Command, format string, document any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml", "":
		data, err = yaml.Marshal(document)
	case "json":
		data, err = json.MarshalIndent(document, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
