package rules

import (
	"fmt"

	"example.com/calbin/internal/calbin"
	"example.com/calbin/internal/caldef"
	"example.com/calbin/internal/ecc"
)

// DefaultRulePack returns the built-in definition/binary consistency gate.
func DefaultRulePack() RulePack {
	return RulePack{
		RulePackId: "calbin-core",
		Version:    "1.0",
		Rules: []Rule{
			{RuleId: "CAL-001", Name: "Marker verification", Scope: "binary", Severity: ERROR, CheckFunc: "checkMarker"},
			{RuleId: "CAL-002", Name: "Known data types", Scope: "definition", Severity: ERROR, CheckFunc: "checkDataTypes"},
			{RuleId: "CAL-003", Name: "Non-zero conversion factor", Scope: "definition", Severity: ERROR, CheckFunc: "checkFactorZero"},
			{RuleId: "CAL-004", Name: "Axis point counts", Scope: "definition", Severity: ERROR, CheckFunc: "checkAxisPoints"},
			{RuleId: "CAL-005", Name: "Table cells within image", Scope: "parameter", Severity: WARN, CheckFunc: "checkParamBounds"},
			{RuleId: "CAL-006", Name: "ECC block alignment", Scope: "binary", Severity: WARN, CheckFunc: "checkEccAlignment"},
		},
	}
}

// RegisterBuiltins installs every built-in check on the engine.
func RegisterBuiltins(e *Engine) {
	e.Register("checkMarker", checkMarker)
	e.Register("checkDataTypes", checkDataTypes)
	e.Register("checkFactorZero", checkFactorZero)
	e.Register("checkAxisPoints", checkAxisPoints)
	e.Register("checkParamBounds", checkParamBounds)
	e.Register("checkEccAlignment", checkEccAlignment)
}

func checkMarker(ctx *Context, _ Rule) ([]Diagnostic, error) {
	if ctx.Definition.Verification == nil {
		return nil, nil
	}
	if ctx.Detect.Valid {
		return nil, nil
	}
	msg := fmt.Sprintf("marker %q not found", ctx.Definition.Verification.Expected)
	if ctx.Detect.Found != "" {
		msg += fmt.Sprintf(" (probe read %q)", ctx.Detect.Found)
	}
	return []Diagnostic{{Message: msg}}, nil
}

func checkDataTypes(ctx *Context, _ Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	for i := range ctx.Definition.Parameters {
		p := &ctx.Definition.Parameters[i]
		if _, err := calbin.ParseDataType(p.DataType); err != nil {
			out = append(out, Diagnostic{Parameter: p.Name, Message: err.Error()})
		}
		for _, ax := range backedAxes(p) {
			if _, err := calbin.ParseDataType(*ax.DataType); err != nil {
				out = append(out, Diagnostic{Parameter: p.Name, Message: "axis: " + err.Error()})
			}
		}
	}
	return out, nil
}

func checkFactorZero(ctx *Context, _ Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	for i := range ctx.Definition.Parameters {
		p := &ctx.Definition.Parameters[i]
		if p.Factor == 0 {
			out = append(out, Diagnostic{Parameter: p.Name, Message: "conversion factor is zero"})
		}
		for _, ax := range backedAxes(p) {
			if ax.Factor == 0 {
				out = append(out, Diagnostic{Parameter: p.Name, Message: "axis conversion factor is zero"})
			}
		}
	}
	return out, nil
}

func checkAxisPoints(ctx *Context, _ Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	for i := range ctx.Definition.Parameters {
		p := &ctx.Definition.Parameters[i]
		rows, cols := p.Shape()
		switch p.Kind {
		case caldef.KindCurve:
			if p.XAxis != nil && p.XAxis.Points != cols*rows {
				out = append(out, Diagnostic{
					Parameter: p.Name,
					Message:   fmt.Sprintf("x axis has %d points, curve has %d samples", p.XAxis.Points, cols*rows),
				})
			}
		case caldef.KindMap:
			if p.XAxis != nil && p.XAxis.Points != cols {
				out = append(out, Diagnostic{
					Parameter: p.Name,
					Message:   fmt.Sprintf("x axis has %d points, map has %d columns", p.XAxis.Points, cols),
				})
			}
			if p.YAxis != nil && p.YAxis.Points != rows {
				out = append(out, Diagnostic{
					Parameter: p.Name,
					Message:   fmt.Sprintf("y axis has %d points, map has %d rows", p.YAxis.Points, rows),
				})
			}
		}
	}
	return out, nil
}

func checkParamBounds(ctx *Context, _ Rule) ([]Diagnostic, error) {
	if len(ctx.Binary) == 0 {
		return nil, nil
	}
	var out []Diagnostic
	for i := range ctx.Definition.Parameters {
		p := &ctx.Definition.Parameters[i]
		dt, err := calbin.ParseDataType(p.DataType)
		if err != nil {
			continue // reported by checkDataTypes
		}
		rows, cols := p.Shape()
		first := calbin.AddressToOffset(p.Address+p.DataOffset, ctx.Env.CalOffset, ctx.Env.BaseAddress)
		last := first + int64((rows*cols-1)*dt.Size()) + int64(dt.Size())
		if first < 0 || last > int64(len(ctx.Binary)) {
			out = append(out, Diagnostic{
				Parameter: p.Name,
				Message: fmt.Sprintf("table spans offsets [%d,%d) outside image of %d bytes; reads degrade to 0",
					first, last, len(ctx.Binary)),
			})
		}
	}
	return out, nil
}

func checkEccAlignment(ctx *Context, _ Rule) ([]Diagnostic, error) {
	if len(ctx.Binary) == 0 {
		return nil, nil
	}
	confidence, hasEcc := ecc.DetectEccPresence(ctx.Binary, 32)
	if !hasEcc {
		return nil, nil
	}
	if len(ctx.Binary)%ecc.PhysicalBlockSize != 0 {
		return []Diagnostic{{
			Message: fmt.Sprintf("image looks ECC-interleaved (confidence %.2f) but its length %d is not a multiple of the %d-byte flash block",
				confidence, len(ctx.Binary), ecc.PhysicalBlockSize),
		}}, nil
	}
	return nil, nil
}

func backedAxes(p *caldef.Parameter) []*caldef.AxisDefinition {
	var out []*caldef.AxisDefinition
	if p.XAxis.Backed() {
		out = append(out, p.XAxis)
	}
	if p.YAxis.Backed() {
		out = append(out, p.YAxis)
	}
	return out
}
