package ringstore

import "path/filepath"

// planPaths returns the ring file paths, one per label, in ring order:
// dir/base<label>ext.
func planPaths(dir, base, ext string, labels []string) []string {
	paths := make([]string, len(labels))
	for i, label := range labels {
		paths[i] = filepath.Join(dir, base+label+ext)
	}

	return paths
}
