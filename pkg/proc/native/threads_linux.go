package native

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// taskIDs returns the ids of the tasks of process pid, read from the task
// directory under procRoot, in ascending order.
func taskIDs(procRoot string, pid int) ([]int, error) {
	des, err := os.ReadDir(filepath.Join(procRoot, strconv.Itoa(pid), "task"))
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(des))
	for _, de := range des {
		tid, err := strconv.Atoi(de.Name())
		if err != nil {
			return nil, fmt.Errorf("unexpected task entry %q: %v", de.Name(), err)
		}
		tids = append(tids, tid)
	}
	sort.Ints(tids)
	return tids, nil
}

func taskExists(procRoot string, pid, tid int) bool {
	_, err := os.Stat(filepath.Join(procRoot, strconv.Itoa(pid), "task", strconv.Itoa(tid)))
	return err == nil
}
