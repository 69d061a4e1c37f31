package proclist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TracerPid returns the pid of the process tracing pid, 0 if it is not
// being traced. A process can only have one tracer so attaching to a
// traced process always fails.
func (l *Lister) TracerPid(pid int) (int, error) {
	status := filepath.Join(l.root(), strconv.Itoa(pid), "status")
	f, err := os.Open(status)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "TracerPid:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed TracerPid line in %s: %s", status, line)
		}
		tracer, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, fmt.Errorf("failed to parse TracerPid value: %w", err)
		}
		return tracer, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading %s: %w", status, err)
	}
	return 0, fmt.Errorf("TracerPid field not found in %s", status)
}
