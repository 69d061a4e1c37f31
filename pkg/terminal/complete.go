package terminal

import (
	"sort"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/unloop/unloop/pkg/logflags"
)

// completer returns a liner completer that offers the names returned by
// names starting with the text typed so far.
func completer(names func() []string) liner.Completer {
	return func(line string) []string {
		c := completeName(names(), line)
		if logflags.Terminal() {
			logflags.TerminalLogger().Debugf("completing %q: %d candidates", line, len(c))
		}
		return c
	}
}

func completeName(names []string, prefix string) []string {
	prefix = strings.TrimLeft(prefix, " \t")
	var c []string
	if prefix == "" {
		c = append(c, names...)
	} else {
		t := trie.New()
		for _, name := range names {
			t.Add(name, nil)
		}
		c = t.PrefixSearch(prefix)
	}
	sort.Strings(c)
	return c
}
