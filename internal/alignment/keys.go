package alignment

import (
	"path"
	"strings"
)

const rootComponentSegment = "root"

func componentSegment(component string) string {
	if component == "" {
		return rootComponentSegment
	}
	return component
}

func currentPrefix(component string) string {
	return path.Join("current_state", componentSegment(component)) + "/"
}

func currentKey(component, relPath string) string {
	return path.Join("current_state", componentSegment(component), relPath)
}

func deletedKey(component, relPath string) string {
	return path.Join("yesterday_state", "deleted_"+componentSegment(component), relPath)
}

// orphanedObjectKeys returns every cache entry owned by component, matched
// by an exact directory prefix (including the trailing slash) so that
// component "A" never matches a sibling component "AB".
func orphanedObjectKeys(cacheFiles []string, component string) []string {
	prefix := currentPrefix(component)
	var keys []string
	for _, f := range cacheFiles {
		if strings.HasPrefix(f, prefix) {
			keys = append(keys, f)
		}
	}
	return keys
}

// cacheComponents returns every component with at least one live
// current_state/ object in the cache, independent of what local shard
// state knows about. The cache is authoritative for what the object store
// actually holds, so this is the set a live-object orphan sweep must walk
// rather than trusting the local shard-key index alone.
func cacheComponents(cacheFiles []string) map[string]bool {
	components := make(map[string]bool)
	for _, f := range cacheFiles {
		rest, ok := strings.CutPrefix(f, "current_state/")
		if !ok {
			continue
		}
		segment, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		component := segment
		if segment == rootComponentSegment {
			component = ""
		}
		components[component] = true
	}
	return components
}
