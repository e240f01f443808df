// The strings command extracts printable runs from a file, the way the
// reference extract_strings tool does, with an optional JSON report.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/config"
	"github.com/0xWelsh/rekit/internal/image"
	"github.com/0xWelsh/rekit/internal/strextract"
)

type jsonMatch struct {
	Offset string `json:"offset"`
	Value  string `json:"value"`
}

type jsonReport struct {
	Tool    string      `json:"tool"`
	File    string      `json:"file"`
	Strings []jsonMatch `json:"strings"`
}

type jsonErr struct {
	Error string `json:"error"`
}

func main() {
	cfg := config.Load()
	var asJSON bool

	root := &cobra.Command{
		Use:           "strings <file> [min_len]",
		Short:         "Extract printable strings from a file",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			minLen := 4
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("invalid min_len %q", args[1])
				}
				minLen = n
			}
			return run(args[0], minLen, asJSON, cfg)
		},
	}
	root.Flags().BoolVar(&asJSON, "json", false, "emit a JSON report instead of a line-per-match listing")

	if err := root.Execute(); err != nil {
		if asJSON {
			emitJSON(jsonErr{Error: err.Error()})
		} else {
			fmt.Fprintln(os.Stderr, "strings:", err)
		}
		os.Exit(1)
	}
}

func run(path string, minLen int, asJSON bool, cfg config.Config) error {
	im, err := image.Open(path, cfg.MaxImageBytes)
	if err != nil {
		return err
	}
	defer im.Close()

	matches, err := strextract.Extract(im, minLen)
	if err != nil {
		return err
	}

	if asJSON {
		report := jsonReport{Tool: "strings", File: path, Strings: []jsonMatch{}}
		for _, m := range matches {
			report.Strings = append(report.Strings, jsonMatch{Offset: fmt.Sprintf("0x%08x", m.Offset), Value: m.Value})
		}
		emitJSON(report)
		return nil
	}

	for _, m := range matches {
		fmt.Printf("%#08x: %s\n", m.Offset, m.Value)
	}
	return nil
}

func emitJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
