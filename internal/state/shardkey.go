package state

import "encoding/base64"

// shardKeyEncoding is the URL-safe, unpadded base64 alphabet the S3 path
// component is encoded with to derive a filesystem-safe shard key.
var shardKeyEncoding = base64.URLEncoding.WithPadding(base64.NoPadding)

// ShardKey derives the on-disk/aggregate-index key for a shard from its
// mount-relative component path ("" for the mount root itself).
func ShardKey(component string) string {
	return shardKeyEncoding.EncodeToString([]byte(component))
}

// ShardComponent reverses ShardKey, recovering the mount-relative path.
func ShardComponent(key string) (string, error) {
	b, err := shardKeyEncoding.DecodeString(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
