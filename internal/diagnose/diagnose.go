package diagnose

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmorand/pyforge/internal/runner"
)

// Category classifies a failed run outcome.
type Category string

const (
	// MissingDependency means the interpreter could not import a module;
	// recoverable by installing the matching package.
	MissingDependency Category = "missing_dependency"

	// SyntaxOrRuntimeError is any other interpreter-raised exception;
	// recoverable by asking the model for a fix.
	SyntaxOrRuntimeError Category = "syntax_or_runtime_error"

	// Timeout means the run was killed after exceeding its deadline.
	Timeout Category = "timeout"

	// Unknown means the output matched no recognized pattern.
	Unknown Category = "unknown"
)

// excerptBytes bounds the stderr tail carried in RawExcerpt.
const excerptBytes = 2000

// Diagnosis is the structured interpretation of a failed run.
type Diagnosis struct {
	Category Category

	// Detail carries the exception type and message line, normalized for
	// feeding back to the model.
	Detail string

	// SuggestedDependency is the offending module for MissingDependency.
	SuggestedDependency string

	// Line is the source line number from the traceback, 0 if unknown.
	Line int

	// RawExcerpt is the tail of the captured stderr.
	RawExcerpt string
}

// Matcher recognizes one failure pattern in captured stderr text.
// Matchers run in order; the first match wins.
type Matcher interface {
	Match(stderr string) (*Diagnosis, bool)
}

// Classifier turns run outcomes into diagnoses. It is pure: it reads only
// the outcome and performs no I/O.
type Classifier struct {
	matchers []Matcher
}

// New returns a classifier with the default matcher chain.
func New() *Classifier {
	return &Classifier{
		matchers: []Matcher{
			moduleNotFoundMatcher{},
			importErrorMatcher{},
			exceptionMatcher{},
		},
	}
}

// NewWithMatchers returns a classifier with a custom ordered chain.
// New categories can be added here without touching the loop controller.
func NewWithMatchers(matchers ...Matcher) *Classifier {
	return &Classifier{matchers: matchers}
}

// Classify interprets a non-cancelled, failed outcome. Timeouts bypass text
// parsing entirely since their stderr is not informative.
func (c *Classifier) Classify(outcome *runner.Outcome) Diagnosis {
	if outcome.TimedOut {
		return Diagnosis{
			Category: Timeout,
			Detail:   fmt.Sprintf("execution exceeded the %s time limit and was terminated", outcome.Timeout),
		}
	}

	// The original surfaces stderr, falls back to stdout, then to a
	// synthetic exit-code message.
	text := strings.TrimSpace(outcome.Stderr)
	if text == "" {
		text = strings.TrimSpace(outcome.Stdout)
	}
	if text == "" {
		text = fmt.Sprintf("script failed with exit code %d and no output", outcome.ExitCode)
	}

	line := tracebackLine(text)
	for _, m := range c.matchers {
		if d, ok := m.Match(text); ok {
			if d.Line == 0 {
				d.Line = line
			}
			if d.RawExcerpt == "" {
				d.RawExcerpt = tail(text, excerptBytes)
			}
			return *d
		}
	}

	return Diagnosis{
		Category:   Unknown,
		Detail:     lastNonEmptyLine(text),
		Line:       line,
		RawExcerpt: tail(text, excerptBytes),
	}
}

var (
	moduleNotFoundRe = regexp.MustCompile(`ModuleNotFoundError: No module named '([^']*)'`)
	importErrorRe    = regexp.MustCompile(`ImportError:.*'([^']*)'`)
	exceptionRe      = regexp.MustCompile(`(?m)^([A-Za-z_][\w.]*(?:Error|Exception|Warning|Exit|Interrupt)): ?(.*)$`)
	fileLineRe       = regexp.MustCompile(`File ".*?", line (\d+)`)
)

// moduleNotFoundMatcher recognizes ModuleNotFoundError tracebacks.
type moduleNotFoundMatcher struct{}

func (moduleNotFoundMatcher) Match(stderr string) (*Diagnosis, bool) {
	m := moduleNotFoundRe.FindStringSubmatch(stderr)
	if m == nil {
		return nil, false
	}
	return &Diagnosis{
		Category:            MissingDependency,
		Detail:              m[0],
		SuggestedDependency: m[1],
	}, true
}

// importErrorMatcher recognizes ImportError tracebacks. The quoted value may
// be dotted; the last segment names the module.
type importErrorMatcher struct{}

func (importErrorMatcher) Match(stderr string) (*Diagnosis, bool) {
	m := importErrorRe.FindStringSubmatch(stderr)
	if m == nil {
		return nil, false
	}
	parts := strings.Split(m[1], ".")
	return &Diagnosis{
		Category:            MissingDependency,
		Detail:              m[0],
		SuggestedDependency: parts[len(parts)-1],
	}, true
}

// exceptionMatcher recognizes any other interpreter exception line.
type exceptionMatcher struct{}

func (exceptionMatcher) Match(stderr string) (*Diagnosis, bool) {
	// Take the last match: tracebacks report the raising frame last.
	all := exceptionRe.FindAllStringSubmatch(stderr, -1)
	if len(all) == 0 {
		return nil, false
	}
	m := all[len(all)-1]
	return &Diagnosis{
		Category: SyntaxOrRuntimeError,
		Detail:   strings.TrimSpace(m[0]),
	}, true
}

// tracebackLine extracts the last reported source line number.
func tracebackLine(text string) int {
	all := fileLineRe.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return 0
	}
	n, err := strconv.Atoi(all[len(all)-1][1])
	if err != nil {
		return 0
	}
	return n
}

// lastNonEmptyLine returns the final non-blank line of text.
func lastNonEmptyLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

// tail returns the last n bytes of s, safe for logs.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
