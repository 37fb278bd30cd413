package model

import (
	"context"
	"fmt"
	"strings"
)

// systemPrompt frames every code-producing request. The single-block rule is
// what makes ExtractCode reliable across backends.
const systemPrompt = `You are an expert Python developer. You write complete,
runnable, single-file Python scripts.

Rules:
- Reply with exactly one fenced code block labeled python containing the
  entire script. No prose outside the block.
- The script must run with "python main.py" inside a virtual environment.
- Use only the standard library unless the task genuinely needs a third-party
  package; when it does, import it normally and it will be installed.
- Print results to stdout. Never wait for interactive input.`

// knownPackages maps import names to their installable package when the two
// differ. Consulted before asking the model.
var knownPackages = map[string]string{
	"PIL":      "pillow",
	"cv2":      "opencv-python",
	"yaml":     "pyyaml",
	"sklearn":  "scikit-learn",
	"bs4":      "beautifulsoup4",
	"dotenv":   "python-dotenv",
	"Crypto":   "pycryptodome",
	"dateutil": "python-dateutil",
	"fitz":     "pymupdf",
}

// GenerationRequest builds the initial request for a natural-language goal.
func GenerationRequest(goal string) Request {
	return Request{
		System: systemPrompt,
		Turns: []Turn{
			{Role: RoleUser, Content: "Write a Python script that does the following:\n\n" + goal},
		},
	}
}

// CorrectionRequest builds a follow-up request asking the model to fix a
// failing script. The previous source and the failure evidence travel in the
// conversation so the model can produce a targeted revision.
func CorrectionRequest(goal, source, errorText string, line int) Request {
	var failure strings.Builder
	failure.WriteString("Running the script failed.")
	if line > 0 {
		fmt.Fprintf(&failure, " The error points at line %d.", line)
	}
	failure.WriteString("\n\nError output:\n")
	failure.WriteString(errorText)
	failure.WriteString("\n\nFix the script and reply with the complete corrected version.")

	return Request{
		System: systemPrompt,
		Turns: []Turn{
			{Role: RoleUser, Content: "Write a Python script that does the following:\n\n" + goal},
			{Role: RoleAssistant, Content: "```python\n" + source + "\n```"},
			{Role: RoleUser, Content: failure.String()},
		},
	}
}

// ResolvePackage maps a missing Python module to the package that provides
// it. The static table answers the common renames; otherwise the model is
// asked, and if its answer doesn't parse the module name itself is returned,
// which is correct for most packages.
func ResolvePackage(ctx context.Context, c Client, module string) (string, error) {
	if pkg, ok := knownPackages[module]; ok {
		return pkg, nil
	}

	req := Request{
		Turns: []Turn{
			{Role: RoleUser, Content: fmt.Sprintf(
				"Which package do I 'pip install' to get the Python module %q? "+
					"Reply with only the package name, nothing else.", module)},
		},
	}
	reply, err := c.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if pkg := ExtractPackageName(reply); pkg != "" {
		return pkg, nil
	}
	return module, nil
}

// IdentifyDependencies asks the model which third-party packages a script
// imports. Used after generation so packages can be installed before the
// first run instead of being discovered one failure at a time.
func IdentifyDependencies(ctx context.Context, c Client, source string) ([]string, error) {
	req := Request{
		Turns: []Turn{
			{Role: RoleUser, Content: "List the third-party pip packages this Python script imports, " +
				"as installable package names, comma-separated. Reply NONE if it only uses the " +
				"standard library. No other text.\n\n```python\n" + source + "\n```"},
		},
	}
	reply, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return ExtractNameList(reply), nil
}
