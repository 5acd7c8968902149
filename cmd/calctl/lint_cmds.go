package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/calbin/internal/btp"
	"example.com/calbin/internal/common"
	"example.com/calbin/internal/report"
	"example.com/calbin/internal/rules"
)

func newLintCmd() *cobra.Command {
	var (
		ndjsonOut string
		jsonOut   string
		rulesPath string
	)
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run rule checks against a binary and its definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, engine, err := runLint(binFlag, defFlag, rulesPath)
			if err != nil {
				return err
			}
			if ndjsonOut != "" {
				if err := engine.WriteDiagnosticsNDJSON(ndjsonOut); err != nil {
					return fmt.Errorf("write ndjson: %w", err)
				}
			}
			if jsonOut != "" {
				if err := report.SaveAcceptanceJSON(rep, jsonOut); err != nil {
					return fmt.Errorf("write acceptance json: %w", err)
				}
			}
			printAcceptance(rep)
			if !rep.Summary.Pass {
				os.Exit(1)
			}
			return nil
		},
	}
	addTargetFlags(cmd)
	cmd.Flags().StringVar(&ndjsonOut, "ndjson", "", "write findings as NDJSON")
	cmd.Flags().StringVar(&jsonOut, "json", "", "write the acceptance report as JSON")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule pack JSON (default builtin pack)")
	return cmd
}

func runLint(binPath, defPath, rulesPath string) (rules.AcceptanceReport, *rules.Engine, error) {
	var rep rules.AcceptanceReport
	buf, def, det, env, err := loadTarget(binPath, defPath)
	if err != nil {
		return rep, nil, err
	}
	rp := rules.DefaultRulePack()
	if rulesPath != "" {
		rp, err = rules.LoadRulePack(rulesPath)
		if err != nil {
			return rep, nil, fmt.Errorf("load rule pack: %w", err)
		}
	}
	engine := rules.NewEngine(rp)
	rules.RegisterBuiltins(engine)
	ctx := &rules.Context{
		BinaryFile: binPath,
		Binary:     buf,
		Definition: def,
		Detect:     det,
		Env:        env,
	}
	if _, err := engine.Eval(ctx); err != nil {
		return rep, nil, fmt.Errorf("evaluate rules: %w", err)
	}
	return engine.MakeAcceptance(), engine, nil
}

func printAcceptance(rep rules.AcceptanceReport) {
	verdict := "PASS"
	if !rep.Summary.Pass {
		verdict = "FAIL"
	}
	fmt.Printf("%s: %d findings (%d errors, %d warnings)\n",
		verdict, rep.Summary.Total, rep.Summary.Errors, rep.Summary.Warnings)
	for _, d := range rep.Findings {
		where := d.File
		if d.Parameter != "" {
			where += ":" + d.Parameter
		}
		fmt.Printf("  %-5s %-8s %s: %s\n", d.Severity, d.RuleId, where, d.Message)
	}
}

func newReportCmd() *cobra.Command {
	var (
		outFlag   string
		patchFlag string
		rulesPath string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a PDF acceptance or patch report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFlag == "" {
				return fmt.Errorf("--out is required")
			}
			if patchFlag != "" {
				return runPatchReport(patchFlag, binFlag, outFlag)
			}
			if binFlag == "" || defFlag == "" {
				return fmt.Errorf("--bin and --def are required for an acceptance report")
			}
			rep, _, err := runLint(binFlag, defFlag, rulesPath)
			if err != nil {
				return err
			}
			if err := report.SaveAcceptancePDF(rep, outFlag); err != nil {
				return fmt.Errorf("render pdf: %w", err)
			}
			common.Logf("acceptance report written to %s", outFlag)
			return nil
		},
	}
	cmd.Flags().StringVar(&binFlag, "bin", "", "calibration binary")
	cmd.Flags().StringVar(&defFlag, "def", "", "definition JSON")
	cmd.Flags().StringVar(&outFlag, "out", "", "output PDF path")
	cmd.Flags().StringVar(&patchFlag, "patch", "", "render a patch report for this .btp instead")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule pack JSON (default builtin pack)")
	return cmd
}

func runPatchReport(patchPath, targetPath, out string) error {
	p, err := loadPatch(patchPath)
	if err != nil {
		return err
	}
	status := btp.StatusIncompatible
	if targetPath != "" {
		target, err := os.ReadFile(targetPath)
		if err != nil {
			return fmt.Errorf("read target: %w", err)
		}
		status = p.Check(target)
	}
	if err := report.SavePatchPDF(p, status, targetPath, out); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	common.Logf("patch report written to %s", out)
	return nil
}
