// Package sdk holds the shared client factory registered by the bundle, the
// embedded service manifest and the catalog of concrete AWS SDK clients.
//
// The factory is built once with the processed configuration and creates a
// client per namespace on demand:
//
//	factory := sdk.NewFactory(cfg, sdk.WithLogger(logger))
//	client, err := factory.CreateClient(ctx, "S3")
//
// Namespaces that have no entry in the catalog produce a *GenericClient that
// carries the resolved aws.Config.
package sdk
