//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package stats

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

// AppendReport renders t's table and appends it, preceded by a
// timestamped session header, to the file at path. The file is
// created if it does not exist; an existing file is never truncated,
// so successive sessions accumulate into one running log.
func AppendReport(path, role string, t *Timing, ioStats p2p.IOStats) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s (%s) ===\n", role, time.Now().Format(time.RFC3339))
	t.Render(&buf, ioStats)
	buf.WriteByte('\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("stats: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("stats: write %s: %w", path, err)
	}
	return nil
}
