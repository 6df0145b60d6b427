package intent

import (
	"strconv"
	"strings"

	"btwd/internal/registry"
)

// Config mirrors §6's intent.* thresholds.
type Config struct {
	DeterministicThreshold float32
	LLMFallbackThreshold   float32
}

// affirmative/negative are the locale-independent confirmation-reply
// whitelist from §4.E resolution rule 1.
var (
	affirmative = []string{"yes", "yeah", "confirm", "do it"}
	negative    = []string{"no", "cancel", "stop"}
)

// sensitiveKeywords gate scoring for session/security-affecting commands
// (§4.E, original implementation's is_sensitive_command_id guard): a
// sensitive command can only ever score above zero if the transcript
// contains one of these explicit action words.
var sensitiveKeywords = []string{
	"lock", "logout", "log out", "sign out", "suspend",
	"shutdown", "shut down", "reboot", "restart",
}

// questionStarters flag obvious informational questions so they're never
// deterministically mistaken for a command (§4.E strict-threshold bump).
var questionStarters = []string{
	"what is", "whats", "what's", "who is", "why", "how", "when", "where",
	"tell me", "explain", "calculate", "solve", "how much", "how many",
}

// webQueryKeywords flag transcripts that should go to the Answer Path's
// search step rather than a plain LLM-summarised answer.
var webQueryKeywords = []string{
	"weather", "news", "current time", "time is", "date is", "today", "stock", "price of",
}

// Classifier is the untrusted LLM hint (§4.E step 2). Its output is never
// trusted directly; Route re-validates every field against the registry.
type Classifier interface {
	Classify(transcript string, candidates []Descriptor) (Proposal, error)
}

// Router resolves a transcript into a Decision (§4.E).
type Router struct {
	cfg  Config
	reg  *registry.Registry
	llm  Classifier
}

// New builds a Router bound to reg (the allow-list, doubling as the
// deterministic scorer's candidate set) and an LLM fallback classifier.
func New(cfg Config, reg *registry.Registry, llm Classifier) *Router {
	if cfg.DeterministicThreshold <= 0 {
		cfg.DeterministicThreshold = 0.75
	}
	if cfg.LLMFallbackThreshold <= 0 {
		cfg.LLMFallbackThreshold = 0.8
	}
	return &Router{cfg: cfg, reg: reg, llm: llm}
}

// Route resolves transcript to a Decision. pendingConfirmation must be true
// only when the orchestrator is awaiting a yes/no reply to a dangerous
// command (§4.E resolution rule 1).
func (r *Router) Route(transcript string, pendingConfirmation bool) Decision {
	norm := normalize(transcript)
	if norm == "" {
		return Decision{Kind: KindUnknown}
	}

	if pendingConfirmation {
		if d, ok := matchConfirmationReply(norm); ok {
			return d
		}
	}

	if best, score, ok := r.bestDeterministicMatch(norm); ok {
		det := r.cfg.DeterministicThreshold
		if score >= det {
			if isObviousQuestion(norm) {
				strict := det + 0.20
				if strict > 0.95 {
					strict = 0.95
				}
				if score < strict {
					// question-like input; fall through to LLM/Answer Path
				} else {
					return r.commandDecision(best, transcript, score)
				}
			} else {
				return r.commandDecision(best, transcript, score)
			}
		}
	}

	if r.llm != nil {
		if d, ok := r.classify(transcript); ok {
			return d
		}
	}

	if isWebQuery(norm) {
		return Decision{Kind: KindWebQuery, Text: transcript}
	}

	return Decision{Kind: KindQuestion, Text: transcript}
}

func matchConfirmationReply(norm string) (Decision, bool) {
	for _, w := range affirmative {
		if norm == w || strings.Contains(norm, w) {
			return Decision{Kind: KindConfirmationReply, Confirmed: true}, true
		}
	}
	for _, w := range negative {
		if norm == w || strings.Contains(norm, w) {
			return Decision{Kind: KindConfirmationReply, Confirmed: false}, true
		}
	}
	return Decision{}, false
}

func (r *Router) bestDeterministicMatch(norm string) (registry.Command, float32, bool) {
	var (
		best      registry.Command
		bestScore float32 = -1
		found     bool
	)

	for _, id := range r.reg.List() {
		cmd, _ := r.reg.Get(id)
		score := scoreCommand(norm, cmd)
		if score > bestScore {
			best, bestScore, found = cmd, score, true
		}
	}

	if !found || bestScore <= 0 {
		return registry.Command{}, 0, false
	}
	return best, bestScore, true
}

func (r *Router) commandDecision(cmd registry.Command, transcript string, score float32) Decision {
	bindings := extractParameters(cmd, normalize(transcript))
	requiresConfirmation := cmd.Dangerous || isSensitiveCommandID(cmd.ID)

	return Decision{
		Kind:                 KindCommand,
		CommandID:            cmd.ID,
		Bindings:             bindings,
		DeterministicScore:   score,
		Dangerous:            cmd.Dangerous,
		RequiresConfirmation: requiresConfirmation,
		Text:                 transcript,
	}
}

// classify calls the untrusted classifier and re-validates its output
// against the registry before ever returning a Command decision (§4.E:
// "the router never passes the classifier's output to the executor
// without this validation step", §9).
func (r *Router) classify(transcript string) (Decision, bool) {
	candidates := r.candidates()

	proposal, err := r.llm.Classify(transcript, candidates)
	if err != nil {
		return Decision{}, false
	}

	if proposal.IsQuestion || proposal.CommandID == "" {
		return Decision{}, false
	}

	if proposal.Confidence < r.cfg.LLMFallbackThreshold {
		return Decision{}, false
	}

	cmd, ok := r.reg.Get(proposal.CommandID)
	if !ok {
		return Decision{Kind: KindUnknown, Diagnostic: "classifier proposed unknown command id"}, true
	}

	typed, err := r.reg.ValidateBindings(proposal.CommandID, proposal.Bindings)
	if err != nil {
		return Decision{Kind: KindUnknown, Diagnostic: err.Error()}, true
	}

	requiresConfirmation := cmd.Dangerous || isSensitiveCommandID(cmd.ID)

	return Decision{
		Kind:                 KindCommand,
		CommandID:            cmd.ID,
		Bindings:             typed,
		Dangerous:            cmd.Dangerous,
		RequiresConfirmation: requiresConfirmation,
		Text:                 transcript,
	}, true
}

func (r *Router) candidates() []Descriptor {
	ids := r.reg.List()
	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		cmd, _ := r.reg.Get(id)
		params := make([]ParamDescriptor, 0, len(cmd.ParamSpecs()))
		for name, spec := range cmd.ParamSpecs() {
			params = append(params, ParamDescriptor{Name: name, Kind: spec.Kind.String(), Enum: spec.Enum})
		}
		out = append(out, Descriptor{
			ID:          cmd.ID,
			Description: cmd.Description,
			Examples:    cmd.Examples,
			Dangerous:   cmd.Dangerous,
			Parameters:  params,
		})
	}
	return out
}

// scoreCommand is a port of the original implementation's score_command:
// exact/substring example match, description substring match, and capped
// Jaccard-like token overlap requiring a minimum number of shared tokens.
func scoreCommand(norm string, cmd registry.Command) float32 {
	if isSensitiveCommandID(cmd.ID) {
		hasKeyword := false
		for _, k := range sensitiveKeywords {
			if strings.Contains(norm, k) {
				hasKeyword = true
				break
			}
		}
		if !hasKeyword {
			return 0
		}
	}

	var score float32

	for _, ex := range cmd.Examples {
		e := normalize(ex)
		if e == norm {
			return 1.0
		}
		if e != "" && strings.Contains(norm, e) {
			score = max32(score, 0.85)
		}
	}

	desc := normalize(cmd.Description)
	if desc != "" && strings.Contains(norm, desc) {
		score = max32(score, 0.8)
	}

	inputTokens := strings.Fields(norm)
	tset := toSet(inputTokens)
	isShortInput := len(inputTokens) <= 3

	var bestOverlap float32
	candidates := append(append([]string(nil), cmd.Examples...), cmd.Description)
	for _, c := range candidates {
		cset := toSet(strings.Fields(normalize(c)))
		inter, union := intersectUnion(tset, cset)
		if union > 0 {
			bestOverlap = max32(bestOverlap, float32(inter)/float32(union))
		}
	}

	if bestOverlap > 0 {
		maxInter := 0
		for _, ex := range cmd.Examples {
			cset := toSet(strings.Fields(normalize(ex)))
			if n, _ := intersectUnion(tset, cset); n > maxInter {
				maxInter = n
			}
		}
		descSet := toSet(strings.Fields(desc))
		if n, _ := intersectUnion(tset, descSet); n > maxInter {
			maxInter = n
		}

		minInter := 2
		if isShortInput {
			minInter = 1
		}
		if maxInter >= minInter {
			score = max32(score, 0.55*bestOverlap)
		}
	}

	return score
}

// extractParameters fills each of cmd's declared parameters from norm,
// per its kind: a leading number for int/float, the first enum option
// that appears verbatim for enum. String parameters are never extracted
// deterministically — they fall through to the LLM classifier fallback.
func extractParameters(cmd registry.Command, norm string) map[string]any {
	bindings := make(map[string]any)
	for name, spec := range cmd.ParamSpecs() {
		switch spec.Kind {
		case registry.KindInt:
			if v, ok := firstInt(norm); ok {
				bindings[name] = v
			}
		case registry.KindFloat:
			if v, ok := firstFloat(norm); ok {
				bindings[name] = v
			}
		case registry.KindEnum:
			for _, opt := range spec.Enum {
				if strings.Contains(norm, normalize(opt)) {
					bindings[name] = opt
					break
				}
			}
		}
	}
	return bindings
}

func firstInt(s string) (int64, bool) {
	var buf strings.Builder
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			buf.WriteRune(ch)
		} else if buf.Len() > 0 {
			break
		}
	}
	if buf.Len() == 0 {
		return 0, false
	}
	var v int64
	for _, ch := range buf.String() {
		v = v*10 + int64(ch-'0')
	}
	return v, true
}

// firstFloat finds the first decimal number in s, e.g. "set it to 0.5" -> 0.5.
func firstFloat(s string) (float64, bool) {
	var buf strings.Builder
	for _, ch := range s {
		if (ch >= '0' && ch <= '9') || (ch == '.' && buf.Len() > 0 && !strings.Contains(buf.String(), ".")) {
			buf.WriteRune(ch)
		} else if buf.Len() > 0 {
			break
		}
	}
	if buf.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(buf.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isObviousQuestion(norm string) bool {
	t := strings.TrimSpace(norm)
	if t == "" {
		return false
	}
	for _, s := range questionStarters {
		if strings.HasPrefix(t, s) {
			return true
		}
	}
	return strings.HasSuffix(t, "?")
}

func isWebQuery(norm string) bool {
	t := strings.TrimSpace(norm)
	if t == "" {
		return false
	}
	for _, k := range webQueryKeywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

func isSensitiveCommandID(id string) bool {
	id = strings.ToLower(id)
	for _, k := range []string{"lock", "logout", "suspend", "shutdown", "reboot"} {
		if strings.Contains(id, k) {
			return true
		}
	}
	return false
}

// normalize lowercases and strips everything but alphanumerics and
// whitespace, matching the original implementation's normalize().
func normalize(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == ' ' || ch == '\t' || ch == '\n' {
			if ch >= 'A' && ch <= 'Z' {
				ch = ch - 'A' + 'a'
			}
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(strings.Join(strings.Fields(b.String()), " "))
}

func toSet(tokens []string) map[string]struct{} {
	s := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

func intersectUnion(a, b map[string]struct{}) (inter, union int) {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
		if _, ok := b[k]; ok {
			inter++
		}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	return inter, len(seen)
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
