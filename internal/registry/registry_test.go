package registry

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"btwd/pkg/util"
)

const sampleJSON = `[
  {
    "id": "set_brightness",
    "description": "Set lamp brightness",
    "dangerous": false,
    "parameters": {"level": "int 0-255"},
    "argv_template": ["lampctl", "--brightness", "{level}"]
  },
  {
    "id": "shutdown",
    "description": "Shut the machine down",
    "dangerous": true,
    "parameters": {},
    "argv_template": ["systemctl", "poweroff"]
  }
]`

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "commands.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidRegistry(t *testing.T) {
	path := writeRegistry(t, sampleJSON)

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ids := reg.List()
	if len(ids) != 2 {
		t.Fatalf("List() = %v, want 2 entries", ids)
	}

	cmd, ok := reg.Get("set_brightness")
	if !ok {
		t.Fatal("expected set_brightness to be present")
	}
	if cmd.Dangerous {
		t.Error("set_brightness should not be dangerous")
	}

	shutdown, ok := reg.Get("shutdown")
	if !ok || !shutdown.Dangerous {
		t.Error("expected shutdown to be present and dangerous")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	dup := `[
		{"id": "a", "parameters": {}, "argv_template": ["echo"]},
		{"id": "a", "parameters": {}, "argv_template": ["echo"]}
	]`
	_, err := Load(writeRegistry(t, dup))
	if err == nil {
		t.Fatal("expected error for duplicate ids")
	}
}

func TestLoadRejectsUndeclaredPlaceholder(t *testing.T) {
	bad := `[{"id": "a", "parameters": {}, "argv_template": ["echo", "{missing}"]}]`
	_, err := Load(writeRegistry(t, bad))
	if err == nil {
		t.Fatal("expected error for undeclared placeholder")
	}
}

func TestLoadRejectsUnusedParameter(t *testing.T) {
	bad := `[{"id": "a", "parameters": {"level": "int"}, "argv_template": ["echo"]}]`
	_, err := Load(writeRegistry(t, bad))
	if err == nil {
		t.Fatal("expected error for unused parameter")
	}
}

func TestLoadRejectsShellMetacharacters(t *testing.T) {
	bad := `[{"id": "a", "parameters": {}, "argv_template": ["echo", "$(whoami)"]}]`
	_, err := Load(writeRegistry(t, bad))
	if err == nil {
		t.Fatal("expected error for shell metacharacters in template")
	}
}

func TestValidateBindingsEnforcesRange(t *testing.T) {
	reg, err := Load(writeRegistry(t, sampleJSON))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := reg.ValidateBindings("set_brightness", map[string]any{"level": int64(300)}); err == nil {
		t.Fatal("expected error for out-of-range level")
	}

	typed, err := reg.ValidateBindings("set_brightness", map[string]any{"level": int64(128)})
	if err != nil {
		t.Fatalf("ValidateBindings() error = %v", err)
	}
	if typed["level"] != int64(128) {
		t.Errorf("typed bindings = %v", typed)
	}
}

func TestValidateBindingsFloatEnumString(t *testing.T) {
	reg, err := Load(writeRegistry(t, `[{
		"id": "set_mode",
		"parameters": {"gain": "float 0.0-1.0", "mode": "enum quiet|normal|loud", "label": "string ^[a-z]+$"},
		"argv_template": ["amp", "{gain}", "{mode}", "{label}"]
	}]`))
	if err != nil {
		t.Fatal(err)
	}

	typed, err := reg.ValidateBindings("set_mode", map[string]any{"gain": 0.5, "mode": "loud", "label": "kitchen"})
	if err != nil {
		t.Fatalf("ValidateBindings() error = %v", err)
	}
	if typed["gain"] != 0.5 || typed["mode"] != "loud" || typed["label"] != "kitchen" {
		t.Errorf("typed bindings = %v", typed)
	}

	if _, err := reg.ValidateBindings("set_mode", map[string]any{"gain": 1.5, "mode": "loud", "label": "kitchen"}); err == nil {
		t.Fatal("expected error for out-of-range gain")
	}
	if _, err := reg.ValidateBindings("set_mode", map[string]any{"gain": 0.5, "mode": "deafening", "label": "kitchen"}); err == nil {
		t.Fatal("expected error for enum value outside the declared set")
	}
	if _, err := reg.ValidateBindings("set_mode", map[string]any{"gain": 0.5, "mode": "loud", "label": "Kitchen1"}); err == nil {
		t.Fatal("expected error for label not matching the declared regex")
	}
}

func TestLoadRejectsEmptyEnumAndBadRegex(t *testing.T) {
	if _, err := Load(writeRegistry(t, `[{"id":"a","parameters":{"m":"enum"},"argv_template":["echo","{m}"]}]`)); err == nil {
		t.Fatal("expected error for enum spec with no options")
	}
	if _, err := Load(writeRegistry(t, `[{"id":"a","parameters":{"s":"string ("},"argv_template":["echo","{s}"]}]`)); err == nil {
		t.Fatal("expected error for a string spec with an unparseable regex")
	}
}

func TestValidateBindingsUnknownCommand(t *testing.T) {
	reg, err := Load(writeRegistry(t, sampleJSON))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.ValidateBindings("does_not_exist", nil); err == nil {
		t.Fatal("expected error for unknown command id")
	}
}

func TestLoadReloadRoundTrip(t *testing.T) {
	path := writeRegistry(t, sampleJSON)

	first, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.List(), second.List()) {
		t.Fatalf("List() differs across reloads: %v vs %v", first.List(), second.List())
	}

	for _, id := range first.List() {
		a, _ := first.Get(id)
		b, _ := second.Get(id)
		sameArgv := util.EqualSlices(a.ArgvTemplate, b.ArgvTemplate, func(x, y string) bool { return x == y }, false)
		if !sameArgv || a.Dangerous != b.Dangerous {
			t.Errorf("command %q differs across reloads: %+v vs %+v", id, a, b)
		}
	}
}
