package storage

import (
	"context"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"cfs-go/internal/model"
)

// DefaultFanout bounds the goroutines used by prefix copy and delete.
const DefaultFanout = 8

func withSlash(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// childrenOf reduces a sorted recursive listing to the immediate children
// of prefix. Deeper keys collapse into one directory entry per first
// segment; the marker of prefix itself is dropped.
func childrenOf(prefix string, all []model.ObjectInfo) []model.ObjectInfo {
	var out []model.ObjectInfo
	seen := make(map[string]bool)
	for _, obj := range all {
		rest := strings.TrimPrefix(obj.Key, prefix)
		if rest == "" {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			dir := prefix + rest[:i+1]
			if !seen[dir] {
				seen[dir] = true
				out = append(out, model.ObjectInfo{Key: dir, IsDir: true})
			}
			continue
		}
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// fanOut runs fn for every item with at most workers goroutines. Every
// failure is kept; the joined error lists all of them.
func fanOut[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers <= 0 {
		workers = DefaultFanout
	}
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for _, item := range items {
		p.Go(func(ctx context.Context) error {
			return fn(ctx, item)
		})
	}
	return p.Wait()
}
