package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/smazurov/zoomrelay/internal/version"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := CreateScalerCommandCmd()
	if args[0] == "version" {
		root = CreateVersionCmd()
	}
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args[1:])
	err := root.Execute()
	return out.String(), err
}

func TestScalerCommandDefault(t *testing.T) {
	out, err := run(t, "scaler-command", "640x360")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"-video_size 640x360", "scale=1280:720:flags=bicubic", "pipe:1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestScalerCommandTemplate(t *testing.T) {
	out, err := run(t, "scaler-command", "320x200", "--output", "640x400", "--template", "scale {in_size} {out_w} {out_h}")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "scale 320x200 640 400" {
		t.Errorf("output = %q", got)
	}
}

func TestScalerCommandRejectsBadSize(t *testing.T) {
	if _, err := run(t, "scaler-command", "640by360"); err == nil {
		t.Error("expected error for malformed size")
	}
	if _, err := run(t, "scaler-command", "640x360", "--output", "0x0"); err == nil {
		t.Error("expected error for zero output size")
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := run(t, "version", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if info.Version != version.Version || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
