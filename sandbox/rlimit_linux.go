//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// runtimeHeadroom is address space left for the Go runtime itself
const runtimeHeadroom = 64 << 20

// limitMemory caps the child's address space at its current size plus the budget
func limitMemory(budget uint64) error {
	debug.SetMemoryLimit(int64(budget))

	current, err := addressSpace()
	if err != nil {
		return err
	}
	limit := current + budget + runtimeHeadroom
	return unix.Setrlimit(unix.RLIMIT_AS, &unix.Rlimit{Cur: limit, Max: limit})
}

func addressSpace() (uint64, error) {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errNoProc, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, errNoProc
	}
	pages, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errNoProc, err)
	}
	return pages * uint64(unix.Getpagesize()), nil
}
