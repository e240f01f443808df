// The anti-debug command runs the bytewise anti-debug heuristic scanner
// over a file and reports per-category findings plus a risk bucket.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xWelsh/rekit/internal/antidebug"
	"github.com/0xWelsh/rekit/internal/config"
	"github.com/0xWelsh/rekit/internal/image"
	"github.com/0xWelsh/rekit/internal/sigpack"
)

type jsonTechniques struct {
	PtraceDetection     bool `json:"ptrace_detection"`
	TimingChecks        bool `json:"timing_checks"`
	BreakpointDetection bool `json:"breakpoint_detection"`
	ParentProcessCheck  bool `json:"parent_process_check"`
	LDPreloadCheck      bool `json:"ld_preload_check"`
}

type jsonStatistics struct {
	INT3Instructions  int `json:"int3_instructions"`
	SuspiciousStrings int `json:"suspicious_strings"`
	RiskScore         int `json:"risk_score"`
}

type jsonReport struct {
	File              string         `json:"file"`
	AntiDebugDetected bool           `json:"anti_debug_detected"`
	Techniques        jsonTechniques `json:"techniques"`
	Statistics        jsonStatistics `json:"statistics"`
}

type jsonErr struct {
	Error string `json:"error"`
}

func main() {
	cfg := config.Load()
	var asJSON bool
	var sigpackPath string

	root := &cobra.Command{
		Use:           "anti-debug <file>",
		Short:         "Scan a binary for anti-debugging heuristics",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], asJSON, sigpackPath, cfg)
		},
	}
	root.Flags().BoolVar(&asJSON, "json", false, "emit a JSON report")
	root.Flags().StringVar(&sigpackPath, "sigpack", "", "YAML signature pack merged into the built-in pattern table")

	if err := root.Execute(); err != nil {
		if asJSON {
			emitJSON(jsonErr{Error: err.Error()})
		} else {
			fmt.Fprintln(os.Stderr, "anti-debug:", err)
		}
		os.Exit(1)
	}
}

func run(path string, asJSON bool, sigpackPath string, cfg config.Config) error {
	im, err := image.Open(path, cfg.MaxImageBytes)
	if err != nil {
		return err
	}
	defer im.Close()

	scanner := antidebug.New(cfg.INT3Threshold)

	packPath := sigpackPath
	if packPath == "" {
		packPath = cfg.SignaturePackPath
	}
	if packPath != "" {
		pack, err := sigpack.Load(packPath)
		if err != nil {
			return err
		}
		scanner.Merge(pack)
	}

	results, err := scanner.Scan(im)
	if err != nil {
		return err
	}

	if asJSON {
		emitJSON(jsonReport{
			File:              path,
			AntiDebugDetected: results.RiskScore > 0,
			Techniques: jsonTechniques{
				PtraceDetection:     results.PtraceCheck,
				TimingChecks:        results.TimingCheck,
				BreakpointDetection: results.BreakpointCheck,
				ParentProcessCheck:  results.ParentCheck,
				LDPreloadCheck:      results.LDPreloadCheck,
			},
			Statistics: jsonStatistics{
				INT3Instructions:  results.INT3Count,
				SuspiciousStrings: results.SuspiciousStrings,
				RiskScore:         results.RiskScore,
			},
		})
		return nil
	}

	fmt.Printf("File: %s\n", path)
	fmt.Printf("ptrace detection:      %v\n", results.PtraceCheck)
	fmt.Printf("timing checks:         %v\n", results.TimingCheck)
	fmt.Printf("breakpoint detection:  %v (%d INT3 bytes)\n", results.BreakpointCheck, results.INT3Count)
	fmt.Printf("parent process check:  %v\n", results.ParentCheck)
	fmt.Printf("LD_PRELOAD check:      %v\n", results.LDPreloadCheck)
	fmt.Printf("suspicious strings:    %d\n", results.SuspiciousStrings)
	fmt.Printf("risk score:            %d (%s)\n", results.RiskScore, results.Risk)
	return nil
}

func emitJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
