// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command relmap extracts structural relationships from Python source.
//
// Usage:
//
//	relmap extract app.py                    # Print relationships grouped by kind
//	relmap extract app.py --format json      # Machine-readable output
//	relmap extract app.py --dump-nodes       # Show the definition nodes matched
//	relmap scan ./src --store ~/.relmap/db   # Extract a tree and persist results
//	git diff | relmap diff - --root .        # Extract only files a patch touches
//	relmap watch ./src                       # Re-extract on save
//	relmap serve --port 12218                # Run the HTTP service
//
// Configuration:
//
//	--config points at a YAML file. RELMAP_* environment variables override
//	the file; command line flags override both.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
