package callback

import (
	"bufio"
	"fmt"
	"os"
	"sort"
)

// writeBalances renders the accumulated per-address ledger as
// "<address> <sats>" lines, sorted by address for a stable diff between
// runs.
func writeBalances(path string, balances map[string]int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("balances: failed to create %s: %w", path, err)
	}
	defer f.Close()

	addrs := make([]string, 0, len(balances))
	for a := range balances {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	w := bufio.NewWriter(f)
	for _, a := range addrs {
		if _, err := fmt.Fprintf(w, "%s %d\n", a, balances[a]); err != nil {
			return fmt.Errorf("balances: failed to write %s: %w", path, err)
		}
	}
	return w.Flush()
}
