package antidebug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/0xWelsh/rekit/internal/image"
	"github.com/0xWelsh/rekit/internal/sigpack"
)

func openBuf(t *testing.T, data []byte) *image.Image {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "blob")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	im, err := image.Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { im.Close() })
	return im
}

// S6 — anti-debug escalation.
func TestRiskEscalation(t *testing.T) {
	a := make([]byte, 256)
	b := append(append([]byte{}, a...), []byte("ptrace")...)

	scanner := New(0)

	imA := openBuf(t, a)
	resultsA, err := scanner.Scan(imA)
	if err != nil {
		t.Fatal(err)
	}
	imB := openBuf(t, b)
	resultsB, err := scanner.Scan(imB)
	if err != nil {
		t.Fatal(err)
	}

	if resultsA.PtraceCheck {
		t.Error("PtraceCheck on input A = true, want false")
	}
	if !resultsB.PtraceCheck {
		t.Error("PtraceCheck on input B = false, want true")
	}
	if resultsB.RiskScore <= resultsA.RiskScore {
		t.Errorf("risk_score(B)=%d not greater than risk_score(A)=%d", resultsB.RiskScore, resultsA.RiskScore)
	}
}

func TestINT3Density(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xCC
	}
	scanner := New(10)
	results, err := scanner.Scan(openBuf(t, data))
	if err != nil {
		t.Fatal(err)
	}
	if !results.BreakpointCheck {
		t.Error("BreakpointCheck = false, want true above the INT3 threshold")
	}
	if results.INT3Count != 64 {
		t.Errorf("INT3Count = %d, want 64", results.INT3Count)
	}
}

func TestRiskBuckets(t *testing.T) {
	cases := []struct {
		score int
		want  Risk
	}{
		{0, RiskNone},
		{1, RiskLow},
		{2, RiskLow},
		{3, RiskMedium},
		{4, RiskMedium},
		{5, RiskHigh},
	}
	for _, c := range cases {
		if got := riskFor(c.score); got != c.want {
			t.Errorf("riskFor(%d) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestMergeSignaturePack(t *testing.T) {
	scanner := New(0)
	scanner.Merge(&sigpack.Pack{Categories: map[string][]string{
		"ptrace": {"AntiDebugLib"},
	}})

	data := []byte("no builtin markers here, just AntiDebugLib")
	results, err := scanner.Scan(openBuf(t, data))
	if err != nil {
		t.Fatal(err)
	}
	if !results.PtraceCheck {
		t.Error("PtraceCheck = false after merging a custom ptrace-category pattern, want true")
	}
}
