// Package antidebug implements the Anti-Debug Scanner: a pure bytewise
// heuristic over a whole image plus its executable sections. Grounded on
// analysis/anti_debug_detect.c's category checks (check_ptrace_strings,
// check_timing_strings, check_parent_strings, check_ld_preload_strings,
// check_breakpoints), reusing internal/image for the mapped bytes and
// internal/elfbin to find executable sections instead of hand-decoding
// the section table a second time.
package antidebug

import (
	"bytes"

	"github.com/0xWelsh/rekit/internal/elfbin"
	"github.com/0xWelsh/rekit/internal/image"
	"github.com/0xWelsh/rekit/internal/sigpack"
)

// Category names a pattern group. Kept in sync with internal/sigpack's
// validCategories.
type Category string

const (
	CategoryPtrace    Category = "ptrace"
	CategoryTiming    Category = "timing"
	CategoryParent    Category = "parent"
	CategoryLDPreload Category = "ld_preload"
)

// DefaultINT3Threshold is the INT3-count above which breakpoint_check
// fires, absent an internal/config override.
const DefaultINT3Threshold = 10

var builtinPatterns = map[Category][]string{
	CategoryPtrace: {
		"ptrace", "PTRACE", "PT_DENY_ATTACH",
		"debugger", "DEBUGGER", "IsDebuggerPresent",
	},
	CategoryTiming: {
		"rdtsc", "RDTSC", "clock_gettime", "gettimeofday",
		"QueryPerformanceCounter", "GetTickCount",
	},
	CategoryParent: {
		"getppid", "PPID", "/proc/self/status", "TracerPid",
	},
	CategoryLDPreload: {
		"LD_PRELOAD", "LD_DEBUG", "/proc/self/maps",
	},
}

// Risk is the bucketed overall assessment.
type Risk string

const (
	RiskNone   Risk = "none"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

func riskFor(categoryScore int) Risk {
	switch {
	case categoryScore == 0:
		return RiskNone
	case categoryScore <= 2:
		return RiskLow
	case categoryScore <= 4:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Results is the scan's findings, shaped to mirror the techniques/
// statistics split the CLI renders in both human and --json mode.
type Results struct {
	PtraceCheck       bool `json:"ptrace_detection"`
	TimingCheck       bool `json:"timing_checks"`
	BreakpointCheck   bool `json:"breakpoint_detection"`
	ParentCheck       bool `json:"parent_process_check"`
	LDPreloadCheck    bool `json:"ld_preload_check"`
	INT3Count         int  `json:"int3_instructions"`
	SuspiciousStrings int  `json:"suspicious_strings"`
	RiskScore         int  `json:"risk_score"`
	Risk              Risk `json:"risk"`
}

// Scanner holds the merged pattern table and configured threshold.
type Scanner struct {
	patterns      map[Category][]string
	int3Threshold int
}

// New returns a Scanner with the built-in pattern table and threshold.
func New(int3Threshold int) *Scanner {
	if int3Threshold <= 0 {
		int3Threshold = DefaultINT3Threshold
	}
	s := &Scanner{patterns: make(map[Category][]string), int3Threshold: int3Threshold}
	for cat, pats := range builtinPatterns {
		s.patterns[cat] = append([]string(nil), pats...)
	}
	return s
}

// Merge folds an optional user-supplied signature pack into the built-in
// pattern table.
func (s *Scanner) Merge(p *sigpack.Pack) {
	if p == nil {
		return
	}
	for cat, pats := range p.Categories {
		c := Category(cat)
		s.patterns[c] = append(s.patterns[c], pats...)
	}
}

// Scan runs every category check plus INT3 density over im, scanning
// executable sections if im parses as ELF and falling back to the whole
// image otherwise.
func (s *Scanner) Scan(im *image.Image) (Results, error) {
	var r Results

	whole, err := im.Bytes(0, im.Len())
	if err != nil {
		return r, err
	}

	s.scanStrings(whole, CategoryPtrace, &r.PtraceCheck, &r.SuspiciousStrings)
	s.scanStrings(whole, CategoryTiming, &r.TimingCheck, &r.SuspiciousStrings)
	s.scanStrings(whole, CategoryParent, &r.ParentCheck, &r.SuspiciousStrings)
	s.scanStrings(whole, CategoryLDPreload, &r.LDPreloadCheck, &r.SuspiciousStrings)

	if view, err := elfbin.Parse(im); err == nil {
		for _, sec := range view.Sections {
			if sec.Flags&elfbin.FlagExecute == 0 {
				continue
			}
			data, err := im.Bytes(int64(sec.Offset), int64(sec.Size))
			if err != nil {
				continue
			}
			r.INT3Count += countInt3(data)
		}
	} else {
		r.INT3Count = countInt3(whole)
	}
	if r.INT3Count > s.int3Threshold {
		r.BreakpointCheck = true
	}

	score := 0
	for _, hit := range []bool{r.PtraceCheck, r.TimingCheck, r.BreakpointCheck, r.ParentCheck, r.LDPreloadCheck} {
		if hit {
			score++
		}
	}
	r.RiskScore = score
	r.Risk = riskFor(score)
	return r, nil
}

func (s *Scanner) scanStrings(data []byte, cat Category, hit *bool, suspicious *int) {
	for _, pat := range s.patterns[cat] {
		if bytes.Contains(data, []byte(pat)) {
			*hit = true
			*suspicious++
		}
	}
}

func countInt3(data []byte) int {
	n := 0
	for _, b := range data {
		if b == 0xCC {
			n++
		}
	}
	return n
}
