package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/calbin/internal/calbin"
	"example.com/calbin/internal/caldef"
	"example.com/calbin/internal/common"
	"example.com/calbin/internal/ecc"
)

// loadTarget reads the binary and definition and resolves the addressing
// environment through mode detection.
func loadTarget(binPath, defPath string) ([]byte, *caldef.Definition, calbin.DetectResult, calbin.Env, error) {
	var det calbin.DetectResult
	var env calbin.Env
	buf, err := os.ReadFile(binPath)
	if err != nil {
		return nil, nil, det, env, fmt.Errorf("read binary: %w", err)
	}
	def, err := caldef.EnsureLoaded(resolveDefinitionPath(defPath))
	if err != nil {
		return nil, nil, det, env, fmt.Errorf("load definition: %w", err)
	}
	det = calbin.DetectBinaryMode(buf, def.Verification)
	env = calbin.ResolveEnv(def, det)
	return buf, def, det, env, nil
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show image mode, marker state and ECC heuristics",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, def, det, env, err := loadTarget(binFlag, defFlag)
			if err != nil {
				return err
			}
			confidence, hasEcc := ecc.DetectEccPresence(buf, 32)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "definition\t%s (%s)\n", def.Name, def.Version)
			fmt.Fprintf(w, "image size\t%s\n", common.FormatBytes(int64(len(buf))))
			fmt.Fprintf(w, "mode\t%s\n", det.Mode)
			fmt.Fprintf(w, "marker valid\t%v\n", det.Valid)
			if det.Found != "" {
				fmt.Fprintf(w, "marker probe\t%q\n", det.Found)
			}
			fmt.Fprintf(w, "cal offset\t0x%X\n", env.CalOffset)
			fmt.Fprintf(w, "base address\t0x%X\n", env.BaseAddress)
			fmt.Fprintf(w, "big endian\t%v\n", env.BigEndian)
			fmt.Fprintf(w, "ecc heuristic\t%.2f (hasEcc=%v)\n", confidence, hasEcc)
			fmt.Fprintf(w, "parameters\t%d\n", len(def.Parameters))
			for _, cat := range def.Categories() {
				fmt.Fprintf(w, "category\t%s\n", cat)
			}
			return w.Flush()
		},
	}
	addTargetFlags(cmd)
	return cmd
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&binFlag, "bin", "", "calibration binary")
	cmd.Flags().StringVar(&defFlag, "def", "", "definition JSON")
	cmd.MarkFlagRequired("bin")
	cmd.MarkFlagRequired("def")
}

func newReadCmd() *cobra.Command {
	var paramFlag string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a parameter's physical value or full table",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, def, det, env, err := loadTarget(binFlag, defFlag)
			if err != nil {
				return err
			}
			if !det.Valid {
				common.Logf("marker not verified, values may be misaligned")
			}
			p, ok := def.FindParameter(paramFlag)
			if !ok {
				return fmt.Errorf("parameter %q not in definition", paramFlag)
			}
			data, err := calbin.ReadTableData(buf, p, env)
			if err != nil {
				return err
			}
			printTable(os.Stdout, p, data)
			return nil
		},
	}
	addTargetFlags(cmd)
	cmd.Flags().StringVar(&paramFlag, "param", "", "parameter name")
	cmd.MarkFlagRequired("param")
	return cmd
}

func printTable(out *os.File, p *caldef.Parameter, data [][]float64) {
	fmt.Fprintf(out, "%s [%s]\n", p.Label(), p.Unit)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, row := range data {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%.4g", v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}
	w.Flush()
}

func newWriteCmd() *cobra.Command {
	var (
		paramFlag string
		rowFlag   int
		colFlag   int
		valueFlag float64
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a physical value into one table cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, def, det, env, err := loadTarget(binFlag, defFlag)
			if err != nil {
				return err
			}
			if !det.Valid {
				return errors.New("refusing to write: marker not verified")
			}
			p, ok := def.FindParameter(paramFlag)
			if !ok {
				return fmt.Errorf("parameter %q not in definition", paramFlag)
			}
			audit := common.NewAuditLog(cfg.AuditLog)
			if err := writeCellAudited(buf, p, env, audit, rowFlag, colFlag, valueFlag); err != nil {
				return err
			}
			if err := os.WriteFile(binFlag, buf, 0644); err != nil {
				return fmt.Errorf("write binary: %w", err)
			}
			readback, err := calbin.ReadTableCell(buf, p, env, rowFlag, colFlag)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%d,%d) = %.6g %s\n", p.Label(), rowFlag, colFlag, readback, p.Unit)
			return nil
		},
	}
	addTargetFlags(cmd)
	cmd.Flags().StringVar(&paramFlag, "param", "", "parameter name")
	cmd.Flags().IntVar(&rowFlag, "row", 0, "table row")
	cmd.Flags().IntVar(&colFlag, "col", 0, "table column")
	cmd.Flags().Float64Var(&valueFlag, "value", 0, "physical value to store")
	cmd.MarkFlagRequired("param")
	cmd.MarkFlagRequired("value")
	return cmd
}

// writeCellAudited stores one physical value and appends the audit entry
// that makes the edit reversible. The snapshot covers the cell's own bytes,
// including the parameter's data offset and the cell's linear index, so undo
// restores exactly what the write touched.
func writeCellAudited(buf []byte, p *caldef.Parameter, env calbin.Env, audit *common.AuditLog, row, col int, physical float64) error {
	off, size, err := calbin.CellOffset(p, env, row, col)
	if err != nil {
		return err
	}
	before := snapshotBytes(buf, off, size)
	touched, err := calbin.WriteTableCell(buf, p, env, row, col, physical)
	if err != nil {
		return err
	}
	if !touched {
		return fmt.Errorf("cell (%d,%d) of %s resolves outside the image", row, col, p.Name)
	}
	if err := audit.Append(common.AuditEntry{
		Action:    "write-cell",
		Parameter: p.Name,
		Offset:    off,
		BeforeHex: before,
		AfterHex:  snapshotBytes(buf, off, size),
	}); err != nil {
		common.Logf("audit append failed: %v", err)
	}
	return nil
}

func snapshotBytes(buf []byte, off int64, size int) string {
	if off < 0 || off+int64(size) > int64(len(buf)) {
		return ""
	}
	return hex.EncodeToString(buf[off : off+int64(size)])
}

func newAxisCmd() *cobra.Command {
	var (
		paramFlag string
		axisFlag  string
	)
	cmd := &cobra.Command{
		Use:   "axis",
		Short: "Read a parameter's axis sample points",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, def, _, env, err := loadTarget(binFlag, defFlag)
			if err != nil {
				return err
			}
			p, ok := def.FindParameter(paramFlag)
			if !ok {
				return fmt.Errorf("parameter %q not in definition", paramFlag)
			}
			var axis *caldef.AxisDefinition
			switch axisFlag {
			case "x":
				axis = p.XAxis
			case "y":
				axis = p.YAxis
			default:
				return fmt.Errorf("axis must be x or y, got %q", axisFlag)
			}
			if axis == nil {
				return fmt.Errorf("parameter %s has no %s axis", p.Name, axisFlag)
			}
			values, err := calbin.ReadAxisData(buf, axis, env)
			if err != nil {
				return err
			}
			kind := "stored"
			if !axis.Backed() {
				kind = "implicit"
			}
			fmt.Printf("%s %s axis (%s, %s)\n", p.Label(), axisFlag, axis.Kind, kind)
			for i, v := range values {
				fmt.Printf("  [%d] %.6g %s\n", i, v, axis.Unit)
			}
			return nil
		},
	}
	addTargetFlags(cmd)
	cmd.Flags().StringVar(&paramFlag, "param", "", "parameter name")
	cmd.Flags().StringVar(&axisFlag, "axis", "x", "axis to read (x or y)")
	cmd.MarkFlagRequired("param")
	return cmd
}
