package toolbuilder

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// GenerateJS emits the program as a standalone JavaScript resolver: a
// single function taking the input record ("context") and returning the
// output record. Calculation and transform steps reproduce interpreter
// semantics exactly; api_call and ai_analysis steps cannot run outside
// the server (no credentials at call time) and are emitted as runtime
// error values instead of network code. Custom steps execute here, as
// an argument-scoped function, after passing the pre-publish safety
// scan.
func (p *Program) GenerateJS() string {
	w := &jsWriter{resolve: p.resolveJS, inputs: p.inputs}

	w.line("\"use strict\";")
	w.line("")
	w.line("function __div(a, b) { return b === 0 ? 0 : a / b; }")
	w.line("function __mod(a, b) { return b === 0 ? 0 : a %% b; }")

	if usesTransforms(p.steps) {
		w.line("")
		emitTransformHelper(w)
	}

	w.line("")
	w.line("function resolver(context) {")
	w.in()
	w.line("var __result = null;")

	for _, step := range p.steps {
		step.emit(w)
	}

	p.emitReturn(w)
	w.out()
	w.line("}")

	return w.String()
}

// resolveJS maps a formula identifier to a JavaScript reference: step
// results are local variables, everything else reads from the context
// record.
func (p *Program) resolveJS(name string) string {
	if strings.HasPrefix(name, "step_") {
		return jsVar(strings.TrimPrefix(name, "step_"))
	}

	return fmt.Sprintf("context[%q]", name)
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func (p *Program) emitReturn(w *jsWriter) {
	if p.outputTemplate == "" {
		w.line("return { result: __result };")

		return
	}

	// Build the template as string concatenation so placeholder values
	// come from the same references the steps use.
	var parts []string

	rest := p.outputTemplate

	for {
		loc := placeholderPattern.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}

		if prefix := rest[:loc[0]]; prefix != "" {
			parts = append(parts, fmt.Sprintf("%q", prefix))
		}

		parts = append(parts, p.resolveJS(rest[loc[2]:loc[3]]))
		rest = rest[loc[1]:]
	}

	if rest != "" || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%q", rest))
	}

	w.line("return { result: %s };", strings.Join(parts, " + "))
}

func (s *calcStep) emit(w *jsWriter) {
	compiled, err := exprToJS(s.formula, w.resolve)
	if err != nil {
		// Generated code degrades gracefully: a bad formula becomes a
		// structured error value, not a thrown exception.
		w.line("var %s = { error: %q };", jsVar(s.stepID), "EVALUATION_ERROR: "+err.Error())
	} else {
		w.line("var %s = %s;", jsVar(s.stepID), compiled)
	}

	w.line("__result = %s;", jsVar(s.stepID))
}

func (s *condStep) emit(w *jsWriter) {
	condition, err := condToJS(s.expression, w)
	if err != nil {
		condition = "false"
	}

	w.line("var %s = { branch: \"else\", matched: false };", jsVar(s.stepID))
	w.line("__result = %s;", jsVar(s.stepID))
	w.line("if (%s) {", condition)
	w.in()
	w.line("%s = { branch: \"then\", matched: true };", jsVar(s.stepID))
	w.line("__result = %s;", jsVar(s.stepID))

	for _, step := range s.then {
		step.emit(w)
	}

	w.out()
	w.line("} else {")
	w.in()

	for _, step := range s.els {
		step.emit(w)
	}

	w.out()
	w.line("}")
}

func (s *switchStep) emit(w *jsWriter) {
	w.line("var %s = { branch: \"default\", matched: false };", jsVar(s.stepID))
	w.line("__result = %s;", jsVar(s.stepID))
	w.line("switch (String(%s)) {", w.resolve(s.field))

	for _, arm := range s.arms {
		w.line("case %q:", arm.value)
		w.in()
		w.line("%s = { branch: %q, matched: true };", jsVar(s.stepID), arm.value)
		w.line("__result = %s;", jsVar(s.stepID))

		for _, step := range arm.steps {
			step.emit(w)
		}

		w.line("break;")
		w.out()
	}

	w.line("default:")
	w.in()

	for _, step := range s.def {
		step.emit(w)
	}

	w.line("break;")
	w.out()
	w.line("}")
}

func (s *transformStep) emit(w *jsWriter) {
	w.line("var %s = __transform(%q, %s);", jsVar(s.stepID), s.function, w.resolve(s.field))
	w.line("__result = %s;", jsVar(s.stepID))
}

func (s *lookupStep) emit(w *jsWriter) {
	table, err := json.Marshal(s.table)
	if err != nil {
		table = []byte("{}")
	}

	tableVar := "__table_" + sanitizeIdent(s.stepID)
	keyVar := "__key_" + sanitizeIdent(s.stepID)

	w.line("var %s = %s;", tableVar, table)
	w.line("var %s = String(%s);", keyVar, w.resolve(s.field))

	fallback := fmt.Sprintf("{ error: %q }", fmt.Sprintf("LOOKUP_NO_MATCH: step %q", s.stepID))

	if s.hasDefault {
		if encoded, err := json.Marshal(s.def); err == nil {
			fallback = string(encoded)
		}
	}

	w.line("var %s = Object.prototype.hasOwnProperty.call(%s, %s) ? %s[%s] : %s;",
		jsVar(s.stepID), tableVar, keyVar, tableVar, keyVar, fallback)
	w.line("__result = %s;", jsVar(s.stepID))
}

func (s *apiStep) emit(w *jsWriter) {
	w.line("var %s = { error: %q };", jsVar(s.stepID),
		"API_CALL_NOT_AVAILABLE: outbound requests require server-side execution")
	w.line("__result = %s;", jsVar(s.stepID))
}

func (s *aiStep) emit(w *jsWriter) {
	w.line("var %s = { error: %q };", jsVar(s.stepID),
		"AI_ANALYSIS_NOT_AVAILABLE: provider calls require server-side execution")
	w.line("__result = %s;", jsVar(s.stepID))
}

func (s *customStep) emit(w *jsWriter) {
	// The user code sees only the named context variables as arguments;
	// no ambient scope beyond the helpers.
	names := make([]string, 0, len(w.inputs))
	values := make([]string, 0, len(w.inputs))

	for _, name := range w.inputs {
		names = append(names, sanitizeIdent(name))
		values = append(values, fmt.Sprintf("context[%q]", name))
	}

	w.line("var %s = (function (%s) {", jsVar(s.stepID), strings.Join(names, ", "))
	w.in()
	w.line("\"use strict\";")

	for _, line := range strings.Split(s.code, "\n") {
		w.line("%s", line)
	}

	w.out()
	w.line("})(%s);", strings.Join(values, ", "))
	w.line("__result = %s;", jsVar(s.stepID))
}

// condToJS compiles a "left op right" comparison. Sides that reference
// declared inputs or step results compile as expressions; a bare
// identifier bound to nothing becomes a string literal, matching the
// interpreter's operand resolution.
func condToJS(expression string, w *jsWriter) (string, error) {
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		index := strings.Index(expression, op)
		if index < 0 {
			continue
		}

		left := operandToJS(expression[:index], w)
		right := operandToJS(expression[index+len(op):], w)

		jsOp := op
		if op == "==" {
			jsOp = "==="
		} else if op == "!=" {
			jsOp = "!=="
		}

		return fmt.Sprintf("%s %s %s", left, jsOp, right), nil
	}

	return "", fmt.Errorf("no comparison operator in %q", expression)
}

var bareIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func operandToJS(raw string, w *jsWriter) string {
	trimmed := strings.TrimSpace(raw)

	if bareIdentPattern.MatchString(trimmed) && !w.knownName(trimmed) {
		return fmt.Sprintf("%q", trimmed)
	}

	if compiled, err := exprToJS(trimmed, w.resolve); err == nil {
		return compiled
	}

	return fmt.Sprintf("%q", strings.Trim(trimmed, `"'`))
}

func usesTransforms(steps []instruction) bool {
	for _, step := range steps {
		switch s := step.(type) {
		case *transformStep:
			return true
		case *condStep:
			if usesTransforms(s.then) || usesTransforms(s.els) {
				return true
			}
		case *switchStep:
			for _, arm := range s.arms {
				if usesTransforms(arm.steps) {
					return true
				}
			}

			if usesTransforms(s.def) {
				return true
			}
		}
	}

	return false
}

func emitTransformHelper(w *jsWriter) {
	w.line("function __transform(name, value) {")
	w.in()
	w.line("var text = String(value === null || value === undefined ? \"\" : value);")
	w.line("switch (name) {")
	w.line("case \"uppercase\": return text.toUpperCase();")
	w.line("case \"lowercase\": return text.toLowerCase();")
	w.line("case \"trim\": return text.trim();")
	w.line("case \"capitalize\": return text.charAt(0).toUpperCase() + text.slice(1).toLowerCase();")
	w.line("case \"format_number\": return Number(value).toLocaleString(\"en-US\");")
	w.line("case \"format_currency\": return \"$\" + Number(value).toLocaleString(\"en-US\", { minimumFractionDigits: 2, maximumFractionDigits: 2 });")
	w.line("case \"format_date\": return new Date(value).toISOString().slice(0, 10);")
	w.line("case \"extract_domain\": return text.replace(/^[a-z]+:\\/\\//, \"\").replace(/^[^@]*@/, \"\").split(\"/\")[0];")
	w.line("default: return { error: \"TRANSFORM_FAILED: unknown function \" + name };")
	w.line("}")
	w.out()
	w.line("}")
}

func jsVar(stepID string) string {
	return "step_" + sanitizeIdent(stepID)
}

var identCleaner = regexp.MustCompile(`[^A-Za-z0-9_]`)

func sanitizeIdent(name string) string {
	return identCleaner.ReplaceAllString(name, "_")
}

// jsWriter accumulates indented source lines.
type jsWriter struct {
	b       strings.Builder
	depth   int
	resolve func(name string) string
	inputs  []string
}

func (w *jsWriter) line(format string, args ...any) {
	text := fmt.Sprintf(format, args...)

	if text != "" {
		w.b.WriteString(strings.Repeat("  ", w.depth))
	}

	w.b.WriteString(text)
	w.b.WriteString("\n")
}

func (w *jsWriter) in()  { w.depth++ }
func (w *jsWriter) out() { w.depth-- }

// knownName reports whether an identifier is bound at resolver runtime:
// a declared input or a step result reference.
func (w *jsWriter) knownName(name string) bool {
	if strings.HasPrefix(name, "step_") {
		return true
	}

	for _, input := range w.inputs {
		if input == name {
			return true
		}
	}

	return false
}

func (w *jsWriter) String() string {
	return w.b.String()
}
