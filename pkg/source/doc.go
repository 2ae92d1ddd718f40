// Package source loads AWS configuration layers from persistent stores.
//
// A Store loads and saves one raw configuration tree for one Ref. Refs map to
// the file naming used by environment specific configuration:
//
//	Ref{Name: "aws"}              -> aws.yaml
//	Ref{Name: "aws", Env: "prod"} -> aws_prod.yaml
//
// The Resolver loads the base tree followed by one tree per environment and
// returns them as layering.Layer values, weakest first, ready for
// awsbundle.Extension.LoadLayers. Trees are stored exactly as written: escape
// sequences such as "@@key" are kept and only inflated by the extension.
package source
