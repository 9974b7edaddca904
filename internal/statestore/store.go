// Package statestore persists per-session form state behind a small
// read/merge/clear interface. The engine never writes blindly: every POST
// reads the current record, deep-merges a patch into it, and writes the
// result back. Two implementations are provided — an in-memory store for
// tests and demos, and a Redis store for real deployments.
package statestore

import (
	"context"

	"github.com/matthewbaird/formflow/internal/types"
)

// Options controls merge behaviour for one call.
type Options struct {
	// NullOverride makes explicit nil values in the patch overwrite
	// existing values. When false, nil entries are ignored.
	NullOverride bool
	// MergeArrays appends patch arrays to existing arrays instead of
	// replacing them.
	MergeArrays bool
}

// Store is the session state collaborator. Implementations must return
// copies — callers mutate what they get back.
type Store interface {
	// Get returns the state for a session key, or an empty state when
	// none exists.
	Get(ctx context.Context, key string) (types.State, error)

	// Merge deep-merges patch into the stored state and returns the
	// merged result.
	Merge(ctx context.Context, key string, patch types.State, opts Options) (types.State, error)

	// Clear removes all state for a session key.
	Clear(ctx context.Context, key string) error
}

// merge applies a patch to a state record. Fields merge deeply (section
// maps merge key by key); a non-nil Progress or Upload in the patch
// replaces the stored value wholesale, except Upload which merges per
// page path. The patch is cloned first so the merged record never
// aliases maps or slices the caller still holds.
func merge(current types.State, patch types.State, opts Options) types.State {
	patch = patch.Clone()
	if current.Fields == nil {
		current.Fields = map[string]any{}
	}
	mergeMaps(current.Fields, patch.Fields, opts)
	if patch.Progress != nil {
		current.Progress = patch.Progress
	}
	if patch.Upload != nil {
		if current.Upload == nil {
			current.Upload = map[string][]types.FileRecord{}
		}
		for path, files := range patch.Upload {
			current.Upload[path] = files
		}
	}
	return current
}

func mergeMaps(dst, src map[string]any, opts Options) {
	for k, v := range src {
		if v == nil {
			if opts.NullOverride {
				dst[k] = nil
			}
			continue
		}
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				mergeMaps(dstMap, srcMap, opts)
				continue
			}
			fresh := map[string]any{}
			mergeMaps(fresh, srcMap, opts)
			dst[k] = fresh
			continue
		}
		if srcSlice, ok := v.([]any); ok && opts.MergeArrays {
			if dstSlice, ok := dst[k].([]any); ok {
				dst[k] = append(append([]any{}, dstSlice...), srcSlice...)
				continue
			}
		}
		dst[k] = v
	}
}
