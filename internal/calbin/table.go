package calbin

import (
	"fmt"

	"example.com/calbin/internal/caldef"
)

// CellIndex computes the linear storage index of a table cell. Read and
// write paths share this one formula; round-trip tests pin it down.
func CellIndex(row, col, rows, cols int, columnDir bool) int {
	if columnDir {
		return col*rows + row
	}
	return row*cols + col
}

func cellAddress(p *caldef.Parameter, dt DataType, row, col int) uint32 {
	rows, cols := p.Shape()
	index := CellIndex(row, col, rows, cols, p.ColumnDir)
	return p.Address + p.DataOffset + uint32(index*dt.Size())
}

// CellOffset resolves the buffer offset and storage size of one table cell,
// the exact bytes a write to the same cell touches. Callers snapshotting an
// edit use it so the recorded bytes match the edited ones.
func CellOffset(p *caldef.Parameter, env Env, row, col int) (int64, int, error) {
	dt, err := ParseDataType(p.DataType)
	if err != nil {
		return 0, 0, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	rows, cols := p.Shape()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return 0, 0, fmt.Errorf("parameter %s: cell (%d,%d) outside %dx%d table", p.Name, row, col, rows, cols)
	}
	return AddressToOffset(cellAddress(p, dt, row, col), env.CalOffset, env.BaseAddress), dt.Size(), nil
}

// ReadParameterValue reads a scalar parameter's physical value.
func ReadParameterValue(buf []byte, p *caldef.Parameter, env Env) (float64, error) {
	return ReadTableCell(buf, p, env, 0, 0)
}

// ReadTableCell reads one cell of a table parameter and applies the
// parameter's linear conversion.
func ReadTableCell(buf []byte, p *caldef.Parameter, env Env, row, col int) (float64, error) {
	dt, err := ParseDataType(p.DataType)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	rows, cols := p.Shape()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return 0, fmt.Errorf("parameter %s: cell (%d,%d) outside %dx%d table", p.Name, row, col, rows, cols)
	}
	raw := ReadValue(buf, cellAddress(p, dt, row, col), dt, env)
	return ApplyConversion(raw, p.Factor, p.Offset), nil
}

// ReadTableData reads the full table as physical values, row-major
// regardless of the underlying storage direction.
func ReadTableData(buf []byte, p *caldef.Parameter, env Env) ([][]float64, error) {
	dt, err := ParseDataType(p.DataType)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	rows, cols := p.Shape()
	out := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			raw := ReadValue(buf, cellAddress(p, dt, r, c), dt, env)
			out[r][c] = ApplyConversion(raw, p.Factor, p.Offset)
		}
	}
	return out, nil
}

// WriteTableCell writes a physical value into one cell. It reports whether
// the underlying buffer was touched; an out-of-range resolved offset is a
// silent no-op per the codec contract.
func WriteTableCell(buf []byte, p *caldef.Parameter, env Env, row, col int, physical float64) (bool, error) {
	dt, err := ParseDataType(p.DataType)
	if err != nil {
		return false, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	rows, cols := p.Shape()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return false, fmt.Errorf("parameter %s: cell (%d,%d) outside %dx%d table", p.Name, row, col, rows, cols)
	}
	raw := ReverseConversion(physical, p.Factor, p.Offset)
	return WriteValue(buf, cellAddress(p, dt, row, col), dt, raw, env), nil
}

// ReadAxisData returns the axis sample points as physical values. An axis
// without storage backing yields the implicit 0..Points-1 index sequence.
func ReadAxisData(buf []byte, axis *caldef.AxisDefinition, env Env) ([]float64, error) {
	if axis == nil {
		return nil, nil
	}
	out := make([]float64, axis.Points)
	if !axis.Backed() {
		for i := range out {
			out[i] = float64(i)
		}
		return out, nil
	}
	dt, err := ParseDataType(*axis.DataType)
	if err != nil {
		return nil, fmt.Errorf("axis: %w", err)
	}
	base := *axis.Address + axis.DataOffset
	for i := range out {
		raw := ReadValue(buf, base+uint32(i*dt.Size()), dt, env)
		out[i] = ApplyConversion(raw, axis.Factor, axis.Offset)
	}
	return out, nil
}

// WriteAxisValue writes one axis sample. Implicit axes have nothing to
// write to, so the call reports false without touching the buffer.
func WriteAxisValue(buf []byte, axis *caldef.AxisDefinition, env Env, index int, physical float64) (bool, error) {
	if axis == nil || !axis.Backed() {
		return false, nil
	}
	if index < 0 || index >= axis.Points {
		return false, fmt.Errorf("axis sample %d outside %d points", index, axis.Points)
	}
	dt, err := ParseDataType(*axis.DataType)
	if err != nil {
		return false, fmt.Errorf("axis: %w", err)
	}
	raw := ReverseConversion(physical, axis.Factor, axis.Offset)
	return WriteValue(buf, *axis.Address+axis.DataOffset+uint32(index*dt.Size()), dt, raw, env), nil
}
