package model

import (
	"reflect"
	"testing"
)

func TestExtractCode_PythonBlock(t *testing.T) {
	reply := "Here is the script:\n\n```python\nprint(\"hi\")\n```\n\nEnjoy!"
	if got := ExtractCode(reply); got != `print("hi")` {
		t.Errorf("ExtractCode() = %q", got)
	}
}

func TestExtractCode_PrefersPythonOverOtherLanguages(t *testing.T) {
	reply := "```bash\npip install requests\n```\n\n```python\nimport requests\nprint(requests.get('https://example.com'))\n```"
	got := ExtractCode(reply)
	if got != "import requests\nprint(requests.get('https://example.com'))" {
		t.Errorf("ExtractCode() = %q", got)
	}
}

func TestExtractCode_LongestPythonBlockWins(t *testing.T) {
	reply := "```python\nx = 1\n```\nfull version:\n```python\nx = 1\ny = 2\nprint(x + y)\n```"
	got := ExtractCode(reply)
	if got != "x = 1\ny = 2\nprint(x + y)" {
		t.Errorf("ExtractCode() = %q", got)
	}
}

func TestExtractCode_UnlabeledBlock(t *testing.T) {
	reply := "```\nprint('unlabeled')\n```"
	if got := ExtractCode(reply); got != "print('unlabeled')" {
		t.Errorf("ExtractCode() = %q", got)
	}
}

func TestExtractCode_NoFences_ReturnsTrimmedReply(t *testing.T) {
	reply := "  print('bare')  \n"
	if got := ExtractCode(reply); got != "print('bare')" {
		t.Errorf("ExtractCode() = %q", got)
	}
}

func TestExtractPackageName(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"pillow", "pillow"},
		{"`pillow`", "pillow"},
		{"```\npillow\n```", "pillow"},
		{"The package is pillow.", ""}, // prose means the model ignored the format
		{"opencv-python", "opencv-python"},
		{"scikit-learn\n", "scikit-learn"},
		{"", ""},
		{"-leading-dash", ""},
	}
	for _, tt := range tests {
		if got := ExtractPackageName(tt.reply); got != tt.want {
			t.Errorf("ExtractPackageName(%q) = %q, want %q", tt.reply, got, tt.want)
		}
	}
}

func TestExtractNameList(t *testing.T) {
	got := ExtractNameList("requests, numpy, requests\npandas")
	want := []string{"requests", "numpy", "pandas"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractNameList() = %v, want %v", got, want)
	}
}

func TestExtractNameList_None(t *testing.T) {
	if got := ExtractNameList("NONE"); got != nil {
		t.Errorf("ExtractNameList(NONE) = %v, want nil", got)
	}
}
