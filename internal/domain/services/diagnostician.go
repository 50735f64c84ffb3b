package services

import "strings"

// DiagnosticRule maps a set of log signatures to one failure hypothesis.
// Matching is a case-insensitive substring search.
type DiagnosticRule struct {
	Signatures []string
	Hypothesis string
}

// CommonRemedies is appended to every diagnosis regardless of matches.
const CommonRemedies = "Common remedies: re-run the build with --stacktrace, " +
	"delete the build output directory, and verify JAVA_HOME points at the JDK the project requires."

// DefaultDiagnosticRules returns the built-in signature table.
func DefaultDiagnosticRules() []DiagnosticRule {
	return []DiagnosticRule{
		{
			Signatures: []string{"outofmemoryerror", "java heap space", "gc overhead limit"},
			Hypothesis: "Build ran out of memory: raise the build JVM heap (org.gradle.jvmargs in gradle.properties) or clear the build cache.",
		},
		{
			Signatures: []string{
				"could not resolve", "failed to resolve",
				"unknownhostexception", "connection timed out", "connection refused",
			},
			Hypothesis: "Dependency resolution failed: check network connectivity or switch to a repository mirror.",
		},
		{
			Signatures: []string{
				"unsupported class file major version",
				"invalid source release",
				"unsupported class version",
			},
			Hypothesis: "Class-file version mismatch: the project requires a different JDK than the one in use (check JAVA_HOME).",
		},
		{
			Signatures: []string{"permission denied"},
			Hypothesis: "Permission denied: the build wrapper may not be executable (chmod +x gradlew).",
		},
	}
}

// Diagnostician scans captured build logs for known failure signatures and
// emits human-readable hypotheses. Zero signature matches is a valid
// outcome, not a failure of the diagnostician.
type Diagnostician struct {
	rules []DiagnosticRule
}

// NewDiagnostician creates a diagnostician from the built-in rule table
// plus any extra rules from configuration.
func NewDiagnostician(extra ...DiagnosticRule) *Diagnostician {
	return &Diagnostician{rules: append(DefaultDiagnosticRules(), extra...)}
}

// Diagnose returns one hypothesis per matched rule, in rule order, always
// followed by the constant common-remedies suggestion.
func (d *Diagnostician) Diagnose(logText string) []string {
	lower := strings.ToLower(logText)
	var hypotheses []string
	for _, rule := range d.rules {
		for _, sig := range rule.Signatures {
			if strings.Contains(lower, strings.ToLower(sig)) {
				hypotheses = append(hypotheses, rule.Hypothesis)
				break
			}
		}
	}
	return append(hypotheses, CommonRemedies)
}
