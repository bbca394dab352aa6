package preflight

import (
	"context"

	"arcam/internal/config"
)

// DefaultVideoDir is where V4L2 nodes appear.
const DefaultVideoDir = "/dev"

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckAPIBind(cfg.Paths.APIBind),
		CheckVideoNodes(DefaultVideoDir),
	}
	if ctx.Err() != nil {
		return results
	}
	return append(results, CheckPreferenceStore(ctx, cfg))
}

// Failed filters to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
