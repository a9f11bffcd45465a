package syncengine

import "path"

// rootComponentSegment is the literal object-store key segment substituted
// for the empty component (files living directly under the mount root).
const rootComponentSegment = "root"

func componentSegment(component string) string {
	if component == "" {
		return rootComponentSegment
	}
	return component
}

// CurrentKey is the live-object key for a file owned by component.
func CurrentKey(component, relPath string) string {
	return path.Join("current_state", componentSegment(component), relPath)
}

// VersionsKey is where a file's prior content is moved to on modification.
func VersionsKey(component, relPath string) string {
	return path.Join("yesterday_state", "versions_"+componentSegment(component), relPath)
}

// DeletedKey is where a file's content is moved to on deletion.
func DeletedKey(component, relPath string) string {
	return path.Join("yesterday_state", "deleted_"+componentSegment(component), relPath)
}

// mountRelativePath joins a shard's component with a shard-relative path
// into a single mount-relative path, used as the YesterdayState key so
// tombstones from different shards never collide.
func mountRelativePath(component, relPath string) string {
	if component == "" {
		return relPath
	}
	return path.Join(component, relPath)
}
