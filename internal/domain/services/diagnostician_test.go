package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnose(t *testing.T) {
	d := NewDiagnostician()

	tests := []struct {
		name            string
		logText         string
		expectHints     int
		expectSubstring string
	}{
		{
			name:            "out of memory, mixed case",
			logText:         "Execution failed.\nCaused by: java.lang.OutOfMemoryError: Java heap space",
			expectHints:     1,
			expectSubstring: "heap",
		},
		{
			name:            "dependency resolution failure",
			logText:         "> Could not resolve net.fabricmc:fabric-loader:0.15.6.",
			expectHints:     1,
			expectSubstring: "mirror",
		},
		{
			name:            "class version mismatch",
			logText:         "Unsupported class file major version 65",
			expectHints:     1,
			expectSubstring: "JDK",
		},
		{
			name:            "wrapper not executable",
			logText:         "sh: ./gradlew: Permission denied",
			expectHints:     1,
			expectSubstring: "executable",
		},
		{
			name:        "no known signature",
			logText:     "BUILD FAILED in 4s\n1 actionable task: 1 executed",
			expectHints: 0,
		},
		{
			name:        "empty log",
			logText:     "",
			expectHints: 0,
		},
		{
			name:        "two distinct signatures",
			logText:     "java.net.UnknownHostException: maven.fabricmc.net\njava.lang.OutOfMemoryError",
			expectHints: 2,
		},
		{
			name:        "repeated signatures of one rule emit one hypothesis",
			logText:     "OutOfMemoryError ... GC overhead limit exceeded",
			expectHints: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Diagnose(tt.logText)
			require.Len(t, got, tt.expectHints+1)
			assert.Equal(t, CommonRemedies, got[len(got)-1])
			if tt.expectSubstring != "" {
				assert.Contains(t, got[0], tt.expectSubstring)
			}
		})
	}
}

func TestDiagnoseRuleOrderIsStable(t *testing.T) {
	d := NewDiagnostician()
	got := d.Diagnose("could not resolve ... OutOfMemoryError")
	require.Len(t, got, 3)
	// Rule order, not match position, drives output order.
	assert.Contains(t, got[0], "memory")
	assert.Contains(t, got[1], "resolution")
}

func TestDiagnoseExtraRules(t *testing.T) {
	d := NewDiagnostician(DiagnosticRule{
		Signatures: []string{"mapping not found"},
		Hypothesis: "Mappings missing: run the mapping download task first.",
	})
	got := d.Diagnose("ERROR: mapping NOT found for 1.8.9")
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "Mappings missing")
}
