package wipe_test

import (
	"reflect"
	"testing"

	"wipe-go/internal/wipe"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		method       wipe.EraseMethod
		wantPasses   int
		wantPatterns []wipe.Pattern
	}{
		{
			name:         "quick is a single random pass",
			method:       wipe.MethodQuick,
			wantPasses:   1,
			wantPatterns: []wipe.Pattern{wipe.PatternRandom},
		},
		{
			name:         "secure is three passes random zero random",
			method:       wipe.MethodSecure,
			wantPasses:   3,
			wantPatterns: []wipe.Pattern{wipe.PatternRandom, wipe.PatternZero, wipe.PatternRandom},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := wipe.Resolve(tt.method)

			if plan.Method != tt.method {
				t.Errorf("Method = %q, want %q", plan.Method, tt.method)
			}
			if plan.PassCount != tt.wantPasses {
				t.Errorf("PassCount = %d, want %d", plan.PassCount, tt.wantPasses)
			}
			if !reflect.DeepEqual(plan.Patterns, tt.wantPatterns) {
				t.Errorf("Patterns = %v, want %v", plan.Patterns, tt.wantPatterns)
			}
			if got, want := len(plan.PassLabels), plan.PassCount+wipe.BookendPhases; got != want {
				t.Errorf("len(PassLabels) = %d, want %d", got, want)
			}
			if plan.PassLabels[0] != wipe.LabelInitialize {
				t.Errorf("first label = %q, want %q", plan.PassLabels[0], wipe.LabelInitialize)
			}
			n := len(plan.PassLabels)
			if plan.PassLabels[n-2] != wipe.LabelVerify || plan.PassLabels[n-1] != wipe.LabelFinalize {
				t.Errorf("last labels = %q, %q", plan.PassLabels[n-2], plan.PassLabels[n-1])
			}
		})
	}
}

func TestResolve_SecureMeetsMinimumPasses(t *testing.T) {
	if got := wipe.Resolve(wipe.MethodSecure).PassCount; got < 3 {
		t.Errorf("secure PassCount = %d, want >= 3", got)
	}
}

func TestResolve_IsPure(t *testing.T) {
	for _, m := range []wipe.EraseMethod{wipe.MethodQuick, wipe.MethodSecure} {
		a := wipe.Resolve(m)
		b := wipe.Resolve(m)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Resolve(%q) not deterministic: %+v vs %+v", m, a, b)
		}

		// Mutating one result must not leak into the next.
		a.PassLabels[0] = "tampered"
		a.Patterns[0] = wipe.PatternZero
		c := wipe.Resolve(m)
		if c.PassLabels[0] != wipe.LabelInitialize || c.Patterns[0] != wipe.PatternRandom {
			t.Errorf("Resolve(%q) shares state between calls", m)
		}
	}
}

func TestResolve_SecureLabels(t *testing.T) {
	want := []string{
		"Initializing secure erase",
		"Overwriting data (pass 1 of 3)",
		"Overwriting data (pass 2 of 3)",
		"Overwriting data (pass 3 of 3)",
		"Verifying erasure",
		"Finalizing secure wipe",
	}
	if got := wipe.Resolve(wipe.MethodSecure).PassLabels; !reflect.DeepEqual(got, want) {
		t.Errorf("PassLabels = %q, want %q", got, want)
	}
}

func TestParseEraseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    wipe.EraseMethod
		wantErr bool
	}{
		{in: "quick", want: wipe.MethodQuick},
		{in: "SECURE", want: wipe.MethodSecure},
		{in: " Secure ", want: wipe.MethodSecure},
		{in: "gutmann", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := wipe.ParseEraseMethod(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEraseMethod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseEraseMethod(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestErasePlan_Clone(t *testing.T) {
	plan := wipe.Resolve(wipe.MethodSecure)
	clone := plan.Clone()
	clone.PassLabels[1] = "changed"
	clone.Patterns[1] = wipe.PatternRandom

	if plan.PassLabels[1] == "changed" || plan.Patterns[1] != wipe.PatternZero {
		t.Error("Clone() shares backing arrays with the original")
	}
}
