// manifest-paths prints the zarr output paths recorded in a workflow
// manifest, one line per node-name pattern.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/dsvalidate/internal/log"
	"github.com/chrissnell/dsvalidate/pkg/manifest"
)

func main() {
	manifestFile := flag.String("manifest", "", "Path to the workflow manifest (JSON or YAML)")
	param := flag.String("param", manifest.DefaultOutputParam, "Output parameter holding the zarr path")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if *manifestFile == "" || flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s -manifest <workflow.yaml> <pattern> [pattern...]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	data, err := os.ReadFile(*manifestFile)
	if err != nil {
		log.Fatalf("reading manifest: %v", err)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		log.Fatalf("parsing manifest %s: %v", *manifestFile, err)
	}
	m.OutputParam = *param

	failed := false
	for _, pattern := range flag.Args() {
		out, err := m.OutputPath(pattern)
		if err != nil {
			var ambiguous *manifest.AmbiguousMatchError
			if errors.As(err, &ambiguous) {
				log.Errorw("ambiguous pattern", "pattern", pattern, "matches", ambiguous.Count, "first_id", ambiguous.FirstID)
			} else {
				log.Errorw("pattern failed", "pattern", pattern, "error", err)
			}
			failed = true
			continue
		}
		log.Debugw("resolved output", "pattern", pattern, "node", out.NodeID)
		fmt.Println(out.Path)
	}
	if failed {
		os.Exit(1)
	}
}
