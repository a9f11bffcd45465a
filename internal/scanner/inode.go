package scanner

import (
	"os"
	"syscall"
)

// inodeKey identifies a directory by device+inode so a symlink cycle can be
// detected even when the cycle is formed through different path strings.
type inodeKey struct {
	dev uint64
	ino uint64
}

func inodeKeyFor(path string) (inodeKey, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return inodeKey{}, false
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return inodeKey{}, false
	}
	return inodeKey{dev: uint64(stat.Dev), ino: stat.Ino}, true
}
