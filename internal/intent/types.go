// Package intent routes a transcript to either a validated command
// proposal or the Answer Path (§4.E), using deterministic token-overlap
// scoring first and an untrusted LLM classifier only as a fallback hint.
package intent

// Kind distinguishes the resolved decision shape.
type Kind int

const (
	KindUnknown Kind = iota
	KindCommand
	KindQuestion
	KindWebQuery
	KindConfirmationReply
)

// ParamDescriptor names one declared parameter and its kind, so the
// classifier's prompt can ask for a value shaped the way the registry
// will actually validate it (§3: int, float, enum, string).
type ParamDescriptor struct {
	Name string
	Kind string // registry.ParamKind.String(): "int", "float", "enum", or "string"
	Enum []string
}

// Descriptor is the {id, description, parameters} view of a registry
// command the router and classifier both operate on — never the full
// argv_template, which the classifier must never see (§9).
type Descriptor struct {
	ID          string
	Description string
	Examples    []string
	Dangerous   bool
	Parameters  []ParamDescriptor
}

// Decision is the Intent Router's output (§4.E, grounded on the original
// implementation's Decision enum). Bindings holds int64/float64/string
// values, one per declared parameter kind (§3).
type Decision struct {
	Kind                 Kind
	CommandID            string
	Bindings             map[string]any
	DeterministicScore   float32
	Dangerous            bool
	RequiresConfirmation bool
	Text                 string // transcript, for Question/WebQuery
	Confirmed            bool   // valid only when Kind == KindConfirmationReply
	Diagnostic           string
}

// Proposal is the classifier's untrusted output — data only, never
// executed without passing through the router's registry validation.
type Proposal struct {
	CommandID  string
	Bindings   map[string]any
	Confidence float32
	IsQuestion bool
	Text       string
}
