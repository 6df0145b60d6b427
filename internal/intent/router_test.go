package intent

import (
	"os"
	"path/filepath"
	"testing"

	"btwd/internal/registry"
)

const testCommandsJSON = `[
  {
    "id": "brightness_set",
    "description": "Set screen brightness",
    "examples": ["set brightness to 40 percent", "set screen brightness to 70"],
    "dangerous": false,
    "parameters": {"value": "int 0-100"},
    "argv_template": ["brightnessctl", "{value}"]
  },
  {
    "id": "volume_up",
    "description": "Increase system volume",
    "examples": ["increase volume", "turn volume up"],
    "dangerous": false,
    "parameters": {},
    "argv_template": ["true"]
  },
  {
    "id": "system_reboot",
    "description": "Reboot the system",
    "examples": ["restart my system", "reboot"],
    "dangerous": true,
    "parameters": {},
    "argv_template": ["true"]
  }
]`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.json")
	if err := os.WriteFile(path, []byte(testCommandsJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := registry.Load(path)
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}
	return reg
}

func testRouter(t *testing.T) *Router {
	reg := testRegistry(t)
	return New(Config{DeterministicThreshold: 0.6, LLMFallbackThreshold: 0.9}, reg, nil)
}

func TestRouteDeterministicCommands(t *testing.T) {
	r := testRouter(t)

	cases := []struct {
		input string
		want  string
	}{
		{"set brightness to 40 percent", "brightness_set"},
		{"increase volume", "volume_up"},
		{"restart my system", "system_reboot"},
	}

	for _, c := range cases {
		d := r.Route(c.input, false)
		if d.Kind != KindCommand || d.CommandID != c.want {
			t.Errorf("Route(%q) = {Kind:%v CommandID:%q}, want command %q", c.input, d.Kind, d.CommandID, c.want)
		}
	}
}

func TestRouteQuestionNeverBecomesCommand(t *testing.T) {
	r := testRouter(t)
	d := r.Route("what is the weather tomorrow", false)
	if d.Kind == KindCommand {
		t.Fatalf("Route() returned a command for an obvious question: %+v", d)
	}
}

func TestRouteNewsQuestionRoutesToWebQuery(t *testing.T) {
	r := testRouter(t)
	d := r.Route("what's in the news today", false)
	if d.Kind != KindWebQuery {
		t.Fatalf("Kind = %v, want KindWebQuery", d.Kind)
	}
}

func TestRouteConfirmationReplyShortCircuits(t *testing.T) {
	r := testRouter(t)

	yes := r.Route("yes", true)
	if yes.Kind != KindConfirmationReply || !yes.Confirmed {
		t.Fatalf("Route(yes, pending) = %+v", yes)
	}

	no := r.Route("no thanks", true)
	if no.Kind != KindConfirmationReply || no.Confirmed {
		t.Fatalf("Route(no, pending) = %+v", no)
	}
}

func TestRouteSensitiveCommandRequiresKeyword(t *testing.T) {
	r := testRouter(t)
	// "restart my system" scores via examples; a transcript that merely
	// shares unrelated tokens with system_reboot's description must not
	// match without an explicit action keyword.
	d := r.Route("my system is great today", false)
	if d.CommandID == "system_reboot" {
		t.Fatalf("sensitive command matched without an action keyword: %+v", d)
	}
}

func TestRouteDangerousCommandRequiresConfirmation(t *testing.T) {
	r := testRouter(t)
	d := r.Route("reboot", false)
	if d.Kind != KindCommand || d.CommandID != "system_reboot" {
		t.Fatalf("Route(reboot) = %+v", d)
	}
	if !d.RequiresConfirmation {
		t.Error("expected RequiresConfirmation=true for a dangerous command")
	}
}
