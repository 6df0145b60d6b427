// Package registry loads and validates the declarative command allow-list
// (§4.F). It is the single source of truth for what the Safe Executor may
// ever spawn: nothing reaches exec(2) that isn't named here.
package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ParamKind is one of the four parameter kinds spec.md §3 allows: int,
// float, enum, or string.
type ParamKind int

const (
	KindInt ParamKind = iota
	KindFloat
	KindEnum
	KindString
)

func (k ParamKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// ParamSpec constrains one named parameter: "int"/"int MIN-MAX",
// "float"/"float MIN-MAX", "enum A|B|C", or "string REGEX" spec strings.
// Min/Max are nil when an int/float parameter is unbounded; Enum/Pattern
// are nil/empty unless Kind is KindEnum/KindString respectively.
type ParamSpec struct {
	Kind    ParamKind
	Min     *float64
	Max     *float64
	Enum    []string
	Pattern *regexp.Regexp
}

// Command is one allow-listed command descriptor.
type Command struct {
	ID           string               `json:"id"`
	Description  string               `json:"description"`
	Examples     []string             `json:"examples"`
	Dangerous    bool                 `json:"dangerous"`
	Parameters   map[string]string    `json:"parameters"`
	ArgvTemplate []string             `json:"argv_template"`
	parsed       map[string]ParamSpec `json:"-"`
}

// forbiddenSubstrings block shell metacharacters so a template can never be
// turned into a shell invocation, even by accident (§4.G step 2, §9).
var forbiddenSubstrings = []string{"|", "&", ";", ">", "<", "`", "$(", "${", "\\", "\"", "'", "$"}

// Registry is the immutable, loaded allow-list.
type Registry struct {
	byID map[string]Command
	ids  []string
}

// Load reads path (a JSON array of Command) and validates it: every argv
// template placeholder has exactly one declared parameter and vice versa,
// no two commands share an id, and no template contains a shell
// metacharacter. The gjson pre-scan below catches unsafe templates before
// the descriptor is ever unmarshalled into a struct — a defense-in-depth
// step ahead of the field-by-field validation.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("registry: %s is not valid JSON", path)
	}

	result := gjson.ParseBytes(raw)
	if !result.IsArray() {
		return nil, fmt.Errorf("registry: %s must be a JSON array", path)
	}

	var scanErr error
	result.ForEach(func(_, cmd gjson.Result) bool {
		id := cmd.Get("id").String()
		cmd.Get("argv_template").ForEach(func(_, tok gjson.Result) bool {
			for _, bad := range forbiddenSubstrings {
				if strings.Contains(tok.String(), bad) {
					scanErr = fmt.Errorf("registry: command %q: argv_template token %q contains forbidden construct %q", id, tok.String(), bad)
					return false
				}
			}
			return true
		})
		return scanErr == nil
	})
	if scanErr != nil {
		return nil, scanErr
	}

	var cmds []Command
	if err := json.Unmarshal(raw, &cmds); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}

	reg := &Registry{byID: make(map[string]Command, len(cmds))}

	for i := range cmds {
		c := cmds[i]

		if c.ID == "" {
			return nil, fmt.Errorf("registry: command at index %d has no id", i)
		}
		if _, dup := reg.byID[c.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate command id %q", c.ID)
		}

		parsed, err := parseParamSpecs(c.Parameters)
		if err != nil {
			return nil, fmt.Errorf("registry: command %q: %w", c.ID, err)
		}
		c.parsed = parsed

		if err := checkSlotParity(c); err != nil {
			return nil, fmt.Errorf("registry: command %q: %w", c.ID, err)
		}

		reg.byID[c.ID] = c
		reg.ids = append(reg.ids, c.ID)
	}

	return reg, nil
}

// parseParamSpecs parses each declared parameter's spec string into a
// ParamSpec (§3 Command Descriptor: kind ∈ {int, float, enum, string}).
func parseParamSpecs(raw map[string]string) (map[string]ParamSpec, error) {
	out := make(map[string]ParamSpec, len(raw))
	for name, spec := range raw {
		trimmed := strings.TrimSpace(spec)
		kindWord, rest := trimmed, ""
		if space := strings.IndexByte(trimmed, ' '); space >= 0 {
			kindWord, rest = trimmed[:space], strings.TrimSpace(trimmed[space+1:])
		}

		var ps ParamSpec
		switch kindWord {
		case "int":
			ps.Kind = KindInt
			if rest != "" {
				minV, maxV, err := parseNumericRange(rest)
				if err != nil {
					return nil, fmt.Errorf("parameter %q: %w", name, err)
				}
				ps.Min, ps.Max = minV, maxV
			}
		case "float":
			ps.Kind = KindFloat
			if rest != "" {
				minV, maxV, err := parseNumericRange(rest)
				if err != nil {
					return nil, fmt.Errorf("parameter %q: %w", name, err)
				}
				ps.Min, ps.Max = minV, maxV
			}
		case "enum":
			ps.Kind = KindEnum
			for _, opt := range strings.Split(rest, "|") {
				if opt = strings.TrimSpace(opt); opt != "" {
					ps.Enum = append(ps.Enum, opt)
				}
			}
			if len(ps.Enum) == 0 {
				return nil, fmt.Errorf("parameter %q: enum spec must list at least one option", name)
			}
		case "string":
			ps.Kind = KindString
			if rest != "" {
				re, err := regexp.Compile(rest)
				if err != nil {
					return nil, fmt.Errorf("parameter %q: invalid regex %q: %w", name, rest, err)
				}
				ps.Pattern = re
			}
		default:
			return nil, fmt.Errorf("unsupported parameter spec for %q: %q", name, spec)
		}
		out[name] = ps
	}
	return out, nil
}

// parseNumericRange parses a "MIN-MAX" range string for an int/float spec.
func parseNumericRange(s string) (*float64, *float64, error) {
	dash := strings.IndexByte(s, '-')
	if dash < 0 {
		return nil, nil, fmt.Errorf("expected a MIN-MAX range, got %q", s)
	}
	minV, err := strconv.ParseFloat(strings.TrimSpace(s[:dash]), 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid range minimum: %w", err)
	}
	maxV, err := strconv.ParseFloat(strings.TrimSpace(s[dash+1:]), 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid range maximum: %w", err)
	}
	if minV > maxV {
		return nil, nil, fmt.Errorf("range minimum %v exceeds maximum %v", minV, maxV)
	}
	return &minV, &maxV, nil
}

// checkSlotParity enforces §4.F's "every template slot has a parameter"
// invariant in both directions: every {placeholder} in argv_template names
// a declared parameter, and every declared parameter is used somewhere.
func checkSlotParity(c Command) error {
	used := make(map[string]bool)

	for _, tok := range c.ArgvTemplate {
		for _, name := range placeholdersIn(tok) {
			if _, ok := c.parsed[name]; !ok {
				return fmt.Errorf("argv_template references undeclared parameter %q", name)
			}
			used[name] = true
		}
	}

	for name := range c.parsed {
		if !used[name] {
			return fmt.Errorf("parameter %q is declared but never used in argv_template", name)
		}
	}

	return nil
}

func placeholdersIn(token string) []string {
	var out []string
	i := 0
	for i < len(token) {
		open := strings.IndexByte(token[i:], '{')
		if open < 0 {
			break
		}
		open += i
		shut := strings.IndexByte(token[open:], '}')
		if shut < 0 {
			break
		}
		shut += open
		out = append(out, token[open+1:shut])
		i = shut + 1
	}
	return out
}

// List returns every allow-listed command id, in load order.
func (r *Registry) List() []string {
	return append([]string(nil), r.ids...)
}

// Get returns the descriptor for id, or ok=false if it is not allow-listed.
func (r *Registry) Get(id string) (Command, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ParamSpecs returns id's parsed parameter constraints, keyed by name.
func (c Command) ParamSpecs() map[string]ParamSpec {
	return c.parsed
}

// ValidateBindings checks raw bindings against id's declared parameter
// constraints and returns the typed bindings (int64/float64/string) the
// Safe Executor may substitute into argv_template. raw values come either
// from the deterministic extractor (already Go-typed) or from the
// classifier's untrusted JSON (numbers decode as float64, per encoding/json).
func (r *Registry) ValidateBindings(id string, raw map[string]any) (map[string]any, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("registry: unknown command id %q", id)
	}

	out := make(map[string]any, len(c.parsed))
	for name, spec := range c.parsed {
		v, ok := raw[name]
		if !ok {
			return nil, fmt.Errorf("registry: command %q: missing required parameter %q", id, name)
		}

		switch spec.Kind {
		case KindInt:
			iv, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("registry: command %q: parameter %q: %w", id, name, err)
			}
			if spec.Min != nil && float64(iv) < *spec.Min {
				return nil, fmt.Errorf("registry: command %q: parameter %q=%d below min %v", id, name, iv, *spec.Min)
			}
			if spec.Max != nil && float64(iv) > *spec.Max {
				return nil, fmt.Errorf("registry: command %q: parameter %q=%d above max %v", id, name, iv, *spec.Max)
			}
			out[name] = iv

		case KindFloat:
			fv, err := toFloat64(v)
			if err != nil {
				return nil, fmt.Errorf("registry: command %q: parameter %q: %w", id, name, err)
			}
			if spec.Min != nil && fv < *spec.Min {
				return nil, fmt.Errorf("registry: command %q: parameter %q=%v below min %v", id, name, fv, *spec.Min)
			}
			if spec.Max != nil && fv > *spec.Max {
				return nil, fmt.Errorf("registry: command %q: parameter %q=%v above max %v", id, name, fv, *spec.Max)
			}
			out[name] = fv

		case KindEnum:
			sv, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("registry: command %q: parameter %q: expected a string enum value, got %T", id, name, v)
			}
			allowed := false
			for _, opt := range spec.Enum {
				if opt == sv {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, fmt.Errorf("registry: command %q: parameter %q=%q not in enum set %v", id, name, sv, spec.Enum)
			}
			out[name] = sv

		case KindString:
			sv, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("registry: command %q: parameter %q: expected a string value, got %T", id, name, v)
			}
			if spec.Pattern != nil && !spec.Pattern.MatchString(sv) {
				return nil, fmt.Errorf("registry: command %q: parameter %q=%q does not match pattern %q", id, name, sv, spec.Pattern.String())
			}
			out[name] = sv
		}
	}

	return out, nil
}

// toInt64 coerces a binding value to int64, accepting the Go-native types
// the deterministic extractor produces and the float64 encoding/json
// produces for JSON numbers (rejecting non-integral floats).
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("expected an integer, got %v", x)
		}
		return int64(x), nil
	default:
		return 0, fmt.Errorf("expected an integer value, got %T", v)
	}
}

// toFloat64 coerces a binding value to float64.
func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected a numeric value, got %T", v)
	}
}
