package caldef

import (
	"fmt"
	"sort"
	"strings"
)

// ParamKind distinguishes scalar values from one- and two-dimensional tables.
type ParamKind string

const (
	KindValue ParamKind = "VALUE"
	KindCurve ParamKind = "CURVE"
	KindMap   ParamKind = "MAP"
)

// AxisKind mirrors the axis storage classes found in A2L-derived definitions.
type AxisKind string

const (
	AxisStd AxisKind = "STD_AXIS"
	AxisCom AxisKind = "COM_AXIS"
	AxisFix AxisKind = "FIX_AXIS"
)

// AxisDefinition describes one axis of a curve or map. Address and DataType
// are optional; when absent the axis is an implicit 0..Points-1 index
// sequence with no storage backing.
type AxisDefinition struct {
	Kind       AxisKind `json:"kind"`
	Points     int      `json:"points"`
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Unit       string   `json:"unit,omitempty"`
	Address    *uint32  `json:"address,omitempty"`
	DataType   *string  `json:"dataType,omitempty"`
	Factor     float64  `json:"factor,omitempty"`
	Offset     float64  `json:"offset,omitempty"`
	DataOffset uint32   `json:"dataOffset,omitempty"`
}

// Backed reports whether the axis has real storage behind it.
func (a *AxisDefinition) Backed() bool {
	return a != nil && a.Address != nil && a.DataType != nil
}

// Parameter is a single editable calibration quantity. Address is a logical
// address and is always interpreted through the address translation law at
// access time.
type Parameter struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"displayName,omitempty"`
	Kind        ParamKind       `json:"kind"`
	Address     uint32          `json:"address"`
	DataType    string          `json:"dataType"`
	Unit        string          `json:"unit,omitempty"`
	Min         float64         `json:"min"`
	Max         float64         `json:"max"`
	Factor      float64         `json:"factor"`
	Offset      float64         `json:"offset"`
	Rows        int             `json:"rows,omitempty"`
	Cols        int             `json:"cols,omitempty"`
	ColumnDir   bool            `json:"columnDir,omitempty"`
	DataOffset  uint32          `json:"dataOffset,omitempty"`
	XAxis       *AxisDefinition `json:"xAxis,omitempty"`
	YAxis       *AxisDefinition `json:"yAxis,omitempty"`
	Categories  []string        `json:"categories,omitempty"`
}

// Verification carries the marker probe used to classify a binary image.
type Verification struct {
	CalOffset uint32 `json:"calOffset"`
	Expected  string `json:"expected"`
	Length    int    `json:"length,omitempty"`
}

// Definition is the immutable parameter catalogue for one ECU/TCU software
// version. It is supplied by an external A2L conversion pipeline; this
// package only consumes it.
type Definition struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Verification *Verification `json:"verification,omitempty"`
	Offset       uint32        `json:"offset,omitempty"`
	BaseAddress  uint32        `json:"baseAddress,omitempty"`
	BigEndian    bool          `json:"bigEndian,omitempty"`
	Parameters   []Parameter   `json:"parameters"`
}

// FindParameter returns the parameter with the given name, matching the
// custom display name first and the symbolic name second.
func (d *Definition) FindParameter(name string) (*Parameter, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Parameters {
		if d.Parameters[i].DisplayName == name && name != "" {
			return &d.Parameters[i], true
		}
	}
	for i := range d.Parameters {
		if d.Parameters[i].Name == name {
			return &d.Parameters[i], true
		}
	}
	return nil, false
}

// Categories returns the sorted set of category paths used by the
// definition's parameters, one slash-joined path per entry.
func (d *Definition) Categories() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, p := range d.Parameters {
		if len(p.Categories) == 0 {
			continue
		}
		seen[strings.Join(p.Categories, "/")] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Label returns the name shown to a user for the parameter.
func (p *Parameter) Label() string {
	if p == nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// Shape returns the table dimensions with the 1-by-1 default applied.
func (p *Parameter) Shape() (rows, cols int) {
	rows, cols = p.Rows, p.Cols
	if rows <= 0 {
		rows = 1
	}
	if cols <= 0 {
		cols = 1
	}
	return rows, cols
}

func (k ParamKind) valid() bool {
	switch k {
	case KindValue, KindCurve, KindMap:
		return true
	}
	return false
}

func (k AxisKind) valid() bool {
	switch k {
	case AxisStd, AxisCom, AxisFix:
		return true
	}
	return false
}

func (p *Parameter) validate(i int) error {
	if p.Name == "" {
		return fmt.Errorf("parameters[%d]: empty name", i)
	}
	if !p.Kind.valid() {
		return fmt.Errorf("parameters[%d] %s: unknown kind %q", i, p.Name, p.Kind)
	}
	if p.Rows < 0 || p.Cols < 0 {
		return fmt.Errorf("parameters[%d] %s: negative table dimensions", i, p.Name)
	}
	for _, ax := range []struct {
		name string
		def  *AxisDefinition
	}{{"xAxis", p.XAxis}, {"yAxis", p.YAxis}} {
		if ax.def == nil {
			continue
		}
		if !ax.def.Kind.valid() {
			return fmt.Errorf("parameters[%d] %s: %s has unknown kind %q", i, p.Name, ax.name, ax.def.Kind)
		}
		if ax.def.Points <= 0 {
			return fmt.Errorf("parameters[%d] %s: %s has no points", i, p.Name, ax.name)
		}
		if (ax.def.Address == nil) != (ax.def.DataType == nil) {
			return fmt.Errorf("parameters[%d] %s: %s needs both address and dataType", i, p.Name, ax.name)
		}
	}
	return nil
}
