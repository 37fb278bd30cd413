package model

import (
	"context"
	"strings"
	"testing"
)

// scriptedClient returns canned replies in order.
type scriptedClient struct {
	replies []string
	calls   int
}

func (c *scriptedClient) Name() string { return "scripted" }
func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) Generate(_ context.Context, _ Request) (string, error) {
	reply := c.replies[c.calls]
	c.calls++
	return reply, nil
}

func (c *scriptedClient) GenerateStream(ctx context.Context, req Request, emit StreamFunc) (string, error) {
	return c.Generate(ctx, req)
}

func TestGenerationRequest(t *testing.T) {
	req := GenerationRequest("print the first 10 primes")

	if req.System == "" {
		t.Error("System must carry the code-producing instructions")
	}
	if len(req.Turns) != 1 || req.Turns[0].Role != RoleUser {
		t.Fatalf("Turns = %+v, want single user turn", req.Turns)
	}
	if !strings.Contains(req.Turns[0].Content, "first 10 primes") {
		t.Errorf("goal missing from prompt: %q", req.Turns[0].Content)
	}
}

func TestCorrectionRequest_CarriesEvidence(t *testing.T) {
	req := CorrectionRequest(
		"print the first 10 primes",
		"print(1/0)",
		"ZeroDivisionError: division by zero",
		1,
	)

	if len(req.Turns) != 3 {
		t.Fatalf("Turns = %d, want 3 (goal, source, failure)", len(req.Turns))
	}
	if req.Turns[1].Role != RoleAssistant || !strings.Contains(req.Turns[1].Content, "print(1/0)") {
		t.Errorf("assistant turn must carry the failing source: %+v", req.Turns[1])
	}
	last := req.Turns[2]
	if last.Role != RoleUser {
		t.Fatalf("last turn role = %q, want user", last.Role)
	}
	if !strings.Contains(last.Content, "ZeroDivisionError") {
		t.Error("failure turn must include the error output")
	}
	if !strings.Contains(last.Content, "line 1") {
		t.Error("failure turn must mention the error line")
	}
}

func TestCorrectionRequest_NoLine(t *testing.T) {
	req := CorrectionRequest("goal", "src", "boom", 0)
	if strings.Contains(req.Turns[2].Content, "line 0") {
		t.Error("unknown line must not be mentioned")
	}
}

func TestResolvePackage_KnownMapping(t *testing.T) {
	c := &scriptedClient{}
	pkg, err := ResolvePackage(context.Background(), c, "cv2")
	if err != nil {
		t.Fatal(err)
	}
	if pkg != "opencv-python" {
		t.Errorf("pkg = %q, want opencv-python", pkg)
	}
	if c.calls != 0 {
		t.Error("known mappings must not hit the model")
	}
}

func TestResolvePackage_ModelAnswer(t *testing.T) {
	c := &scriptedClient{replies: []string{"```\npillow\n```"}}
	pkg, err := ResolvePackage(context.Background(), c, "imaging")
	if err != nil {
		t.Fatal(err)
	}
	if pkg != "pillow" {
		t.Errorf("pkg = %q, want pillow", pkg)
	}
}

func TestResolvePackage_UnparseableFallsBackToModule(t *testing.T) {
	c := &scriptedClient{replies: []string{"I think you want the pillow package!"}}
	pkg, err := ResolvePackage(context.Background(), c, "requests")
	if err != nil {
		t.Fatal(err)
	}
	if pkg != "requests" {
		t.Errorf("pkg = %q, want module name fallback", pkg)
	}
}

func TestIdentifyDependencies(t *testing.T) {
	c := &scriptedClient{replies: []string{"requests, numpy"}}
	deps, err := IdentifyDependencies(context.Background(), c, "import requests\nimport numpy")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 || deps[0] != "requests" || deps[1] != "numpy" {
		t.Errorf("deps = %v", deps)
	}
}

func TestIdentifyDependencies_StdlibOnly(t *testing.T) {
	c := &scriptedClient{replies: []string{"NONE"}}
	deps, err := IdentifyDependencies(context.Background(), c, "import os")
	if err != nil {
		t.Fatal(err)
	}
	if deps != nil {
		t.Errorf("deps = %v, want nil", deps)
	}
}
