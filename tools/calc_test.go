// Copyright (c) Microsoft. All rights reserved.

package tools

import "testing"

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 / 4", 2.5},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"2 ^ -1", 0.5},
		{"7 % 4", 3},
		{"-(3 - 5)", 2},
		{" 1.5*2 ", 3},
	}
	for _, tc := range tests {
		got, err := evaluate(tc.expr)
		if err != nil {
			t.Errorf("evaluate(%q): %v", tc.expr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluate_Errors(t *testing.T) {
	for _, expr := range []string{"", "1 +", "(1 + 2", "1 / 0", "5 % 0", "2 * x", "1..2", "import os"} {
		if _, err := evaluate(expr); err == nil {
			t.Errorf("evaluate(%q) succeeded", expr)
		}
	}
}
