package retention

import "path"

// rootComponentSegment matches the literal segment internal/syncengine
// substitutes for the empty (mount-root) component when building object
// keys, so a tombstone's stored Component round-trips to the same key.
const rootComponentSegment = "root"

func componentSegment(component string) string {
	if component == "" {
		return rootComponentSegment
	}
	return component
}

// DeletedKey rebuilds the object key a tombstoned file's content lives
// under, from the Component/Filename pair recorded on its DeletedFile.
func DeletedKey(component, filename string) string {
	return path.Join("yesterday_state", "deleted_"+componentSegment(component), filename)
}
