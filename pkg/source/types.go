package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-aws-bundle/layering"
)

var (
	ErrETagMismatch = errors.New("source: etag mismatch")
	ErrNoLayers     = errors.New("source: no layers found")
)

// Ref identifies one stored configuration tree.
type Ref struct {
	Name string
	Env  string
}

// Key returns the storage key, "<name>" or "<name>_<env>".
func (r Ref) Key() (string, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", fmt.Errorf("source: ref name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsAny(r.Env, `/\`) {
		return "", fmt.Errorf("source: ref %q contains a path separator", name)
	}
	env := strings.TrimSpace(r.Env)
	if env == "" {
		return name, nil
	}
	return name + "_" + env, nil
}

// LayerName is the layer name used for the tree loaded from r.
func (r Ref) LayerName() string {
	if strings.TrimSpace(r.Env) == "" {
		return r.Name
	}
	return r.Name + "@" + r.Env
}

// Meta is storage-owned metadata used for provenance and concurrency control.
type Meta struct {
	Source    string            `json:"source,omitempty"`
	ETag      string            `json:"etag,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one configuration tree for a single ref.
type Store interface {
	Load(ctx context.Context, ref Ref) (tree map[string]any, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, tree map[string]any, meta Meta) (Meta, error)
}

// Validator checks a tree before it is saved. *awsbundle.Schema satisfies it.
type Validator interface {
	Normalize(tree map[string]any) (map[string]any, error)
}

// Mutator edits a tree in place.
type Mutator func(tree map[string]any) error

// Resolver loads configuration layers from Store.
type Resolver struct {
	Store  Store
	Logger *zap.Logger
}

func (r Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Resolve loads the base tree for name followed by one tree per env. Missing
// trees are skipped; at least one must exist.
func (r Resolver) Resolve(ctx context.Context, name string, envs ...string) ([]layering.Layer, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("source: store is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("source: name is required")
	}

	refs := []Ref{{Name: name}}
	for _, env := range envs {
		if env = strings.TrimSpace(env); env != "" {
			refs = append(refs, Ref{Name: name, Env: env})
		}
	}

	layers := make([]layering.Layer, 0, len(refs))
	for _, ref := range refs {
		tree, meta, ok, err := r.Store.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("source: load %q: %w", ref.LayerName(), err)
		}
		if !ok {
			r.logger().Debug("configuration layer not found", zap.String("layer", ref.LayerName()))
			continue
		}
		layers = append(layers, layering.NewLayer(ref.LayerName(), tree, layering.WithSource(meta.Source)))
		r.logger().Debug("configuration layer loaded",
			zap.String("layer", ref.LayerName()),
			zap.String("source", meta.Source),
			zap.Int("keys", len(tree)),
		)
	}

	if len(layers) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoLayers, name)
	}
	return layers, nil
}

// Mutate loads the tree for ref, applies fn, validates the result and saves
// it. A non-empty meta.ETag must match the stored one.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, validator Validator, fn Mutator) (map[string]any, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("source: store is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("source: mutator is required")
	}

	tree, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("source: load %q: %w", ref.LayerName(), err)
	}
	if !ok {
		tree = map[string]any{}
		loadedMeta = Meta{}
	}
	tree = layering.CloneTree(tree)
	if tree == nil {
		tree = map[string]any{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}
	if err := fn(tree); err != nil {
		return nil, loadedMeta, err
	}
	if validator != nil {
		if _, err := validator.Normalize(tree); err != nil {
			return nil, loadedMeta, err
		}
	}

	saved, err := r.Store.Save(ctx, ref, tree, mergeMeta(loadedMeta, meta))
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("source: save %q: %w", ref.LayerName(), err)
	}
	return tree, saved, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.Source != "" {
		out.Source = override.Source
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
