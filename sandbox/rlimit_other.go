//go:build !linux

package sandbox

import "runtime/debug"

func limitMemory(budget uint64) error {
	debug.SetMemoryLimit(int64(budget))
	return nil
}
