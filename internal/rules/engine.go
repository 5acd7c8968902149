package rules

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"time"

	"example.com/calbin/internal/calbin"
	"example.com/calbin/internal/caldef"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
	INFO  Severity = "INFO"
)

// Rule binds a named check function to an identifier, severity and the
// standards references reported with each finding.
type Rule struct {
	RuleId    string         `json:"ruleId"`
	Name      string         `json:"name,omitempty"`
	Scope     string         `json:"scope"` // definition|binary|parameter
	Severity  Severity       `json:"severity"`
	CheckFunc string         `json:"checkFunction"`
	Refs      []string       `json:"refs,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Message   string         `json:"message,omitempty"`
}

type RulePack struct {
	RulePackId string `json:"rulePackId"`
	Version    string `json:"version"`
	Rules      []Rule `json:"rules"`
}

// Diagnostic is one lint finding, serialized as NDJSON for downstream
// tooling and rendered into the acceptance report.
type Diagnostic struct {
	Ts        time.Time `json:"ts"`
	File      string    `json:"file"`
	Parameter string    `json:"parameter,omitempty"`
	RuleId    string    `json:"ruleId"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Refs      []string  `json:"refs,omitempty"`
}

type GateResult struct {
	RuleId   string `json:"ruleId"`
	Name     string `json:"name,omitempty"`
	Severity string `json:"severity"`
	Pass     bool   `json:"pass"`
	Findings int    `json:"findings"`
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	GateMatrix []GateResult `json:"gateMatrix"`
	Findings   []Diagnostic `json:"findings,omitempty"`
}

// Context carries everything a check may inspect: the loaded image, the
// definition it is being validated against and the resolved addressing
// environment.
type Context struct {
	BinaryFile string
	Binary     []byte
	Definition *caldef.Definition
	Detect     calbin.DetectResult
	Env        calbin.Env
}

// CheckFunc inspects the context and returns zero or more findings. The
// engine stamps rule identity, severity and references onto each one.
type CheckFunc func(ctx *Context, rule Rule) ([]Diagnostic, error)

type Engine struct {
	rulePack    RulePack
	registry    map[string]CheckFunc
	diagnostics []Diagnostic
	gates       []GateResult
}

func NewEngine(rp RulePack) *Engine {
	return &Engine{
		rulePack: rp,
		registry: make(map[string]CheckFunc),
	}
}

func (e *Engine) Register(name string, f CheckFunc) {
	e.registry[name] = f
}

// Eval runs every rule in the pack against the context.
func (e *Engine) Eval(ctx *Context) ([]Diagnostic, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}
	if ctx.Definition == nil {
		return nil, errors.New("context missing definition")
	}
	var diags []Diagnostic
	e.gates = e.gates[:0]
	for _, r := range e.rulePack.Rules {
		fn, ok := e.registry[r.CheckFunc]
		if !ok {
			diags = append(diags, Diagnostic{
				Ts: time.Now(), File: ctx.BinaryFile, RuleId: r.RuleId, Severity: WARN,
				Message: "no function for rule " + r.CheckFunc, Refs: r.Refs,
			})
			e.gates = append(e.gates, GateResult{RuleId: r.RuleId, Name: r.Name, Severity: string(WARN), Pass: false, Findings: 1})
			continue
		}
		found, err := fn(ctx, r)
		if err != nil {
			found = append(found, Diagnostic{Message: "check failed: " + err.Error()})
		}
		for i := range found {
			if found[i].Ts.IsZero() {
				found[i].Ts = time.Now()
			}
			found[i].File = ctx.BinaryFile
			found[i].RuleId = r.RuleId
			if found[i].Severity == "" {
				found[i].Severity = r.Severity
			}
			if len(found[i].Refs) == 0 {
				found[i].Refs = r.Refs
			}
		}
		diags = append(diags, found...)
		e.gates = append(e.gates, GateResult{
			RuleId:   r.RuleId,
			Name:     r.Name,
			Severity: string(r.Severity),
			Pass:     len(found) == 0,
			Findings: len(found),
		})
	}
	e.diagnostics = diags
	return diags, nil
}

func (e *Engine) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, d := range e.diagnostics {
		b, _ := json.Marshal(d)
		w.Write(b)
		w.WriteString("\n")
	}
	return nil
}

func (e *Engine) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	var errs, warns int
	for _, d := range e.diagnostics {
		switch d.Severity {
		case ERROR:
			errs++
		case WARN:
			warns++
		}
	}
	rep.Summary.Total = len(e.diagnostics)
	rep.Summary.Errors = errs
	rep.Summary.Warnings = warns
	rep.Summary.Pass = errs == 0
	rep.GateMatrix = append(rep.GateMatrix, e.gates...)
	rep.Findings = e.diagnostics
	return rep
}

// LoadRulePack reads a rule pack JSON file.
func LoadRulePack(path string) (RulePack, error) {
	var rp RulePack
	b, err := os.ReadFile(path)
	if err != nil {
		return rp, err
	}
	err = json.Unmarshal(b, &rp)
	return rp, err
}
