package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/calbin/internal/btp"
	"example.com/calbin/internal/common"
)

func newPatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Inspect and apply BTP patch containers",
	}
	cmd.AddCommand(newPatchInfoCmd(), newPatchCheckCmd(), newPatchApplyCmd(), newPatchRemoveCmd())
	return cmd
}

func loadPatch(path string) (*btp.Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read patch: %w", err)
	}
	p, err := btp.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, nil
}

func newPatchInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <patch.btp>",
		Short: "Show the container header and block layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPatch(args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "version\t%s\n", p.Header.Version)
			fmt.Fprintf(w, "soft code\t%s\n", p.Header.SoftCode)
			fmt.Fprintf(w, "target size\t%s\n", common.FormatBytes(int64(p.Header.FileSize)))
			fmt.Fprintf(w, "blocks\t%d\n", len(p.Blocks))
			fmt.Fprintf(w, "checksum\t0x%08X (valid=%v)\n", p.Header.StoredChecksum, p.CrcValid)
			w.Flush()
			for i, blk := range p.Blocks {
				fmt.Printf("  block %d: offset 0x%08X length %d\n", i, blk.FileOffset, blk.Length)
			}
			return nil
		},
	}
	return cmd
}

func newPatchCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <patch.btp> <target.bin>",
		Short: "Classify a target binary against a patch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPatch(args[0])
			if err != nil {
				return err
			}
			target, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read target: %w", err)
			}
			status := p.Check(target)
			fmt.Printf("status: %s\n", status)
			if !p.CrcValid {
				fmt.Println("warning: container checksum mismatch")
			}
			if !p.MatchesTargetSize(target) {
				fmt.Printf("warning: target is %d bytes, patch expects %d\n",
					len(target), p.Header.FileSize)
			}
			if status == btp.StatusIncompatible {
				os.Exit(2)
			}
			return nil
		},
	}
	return cmd
}

func newPatchApplyCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "apply <patch.btp> <target.bin>",
		Short: "Apply a patch to a target binary in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatchEdit(args[0], args[1], force, false)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "apply even when the target is not in the ready state")
	return cmd
}

func newPatchRemoveCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "remove <patch.btp> <target.bin>",
		Short: "Revert an applied patch on a target binary in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatchEdit(args[0], args[1], force, true)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "revert even when the target is not in the applied state")
	return cmd
}

func runPatchEdit(patchPath, targetPath string, force, remove bool) error {
	p, err := loadPatch(patchPath)
	if err != nil {
		return err
	}
	target, err := os.ReadFile(targetPath)
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}

	status := p.Check(target)
	want := btp.StatusReady
	verb := "apply"
	if remove {
		want = btp.StatusApplied
		verb = "remove"
	}
	if status != want && !force {
		return fmt.Errorf("cannot %s: target is %s, want %s (use --force to override)", verb, status, want)
	}
	if !p.CrcValid {
		common.Logf("patch %s: checksum mismatch, continuing", patchPath)
	}

	audit := common.NewAuditLog(cfg.AuditLog)
	metrics := common.NewMetrics()
	metrics.Start()
	for _, blk := range p.Blocks {
		before := snapshotBytes(target, int64(blk.FileOffset), int(blk.Length))
		after := blk.ModifiedData
		if remove {
			after = blk.OriginalData
		}
		copyAt(target, blk.FileOffset, after)
		metrics.AddBlocksWritten(1)
		metrics.AddBytes(int64(blk.Length))
		if err := audit.Append(common.AuditEntry{
			Action:    "patch-" + verb,
			SoftCode:  p.Header.SoftCode,
			Offset:    int64(blk.FileOffset),
			BeforeHex: before,
			AfterHex:  hex.EncodeToString(after),
		}); err != nil {
			common.Logf("audit append failed: %v", err)
		}
	}
	metrics.Stop()

	if err := os.WriteFile(targetPath, target, 0644); err != nil {
		return fmt.Errorf("write target: %w", err)
	}
	snap := metrics.Snapshot()
	fmt.Printf("%s %s: %d blocks, %s written, now %s\n",
		verb, patchPath, snap.BlocksWritten,
		common.FormatBytes(snap.Bytes), p.Check(target))
	return nil
}

func copyAt(target []byte, offset uint32, data []byte) {
	end := int64(offset) + int64(len(data))
	if int64(offset) >= int64(len(target)) {
		return
	}
	if end > int64(len(target)) {
		end = int64(len(target))
	}
	copy(target[offset:end], data)
}

// undoEntries replays audit entries newest first, restoring an entry's
// recorded bytes when the target still matches its after state. Entries
// whose bytes drifted since the edit are skipped rather than clobbered.
func undoEntries(target []byte, entries []common.AuditEntry, steps int, dryRun bool) (int, error) {
	undone := 0
	for i := len(entries) - 1; i >= 0 && undone < steps; i-- {
		e := entries[i]
		before, err := e.BeforeBytes()
		if err != nil {
			return undone, fmt.Errorf("entry %d: %w", i, err)
		}
		if len(before) == 0 {
			continue
		}
		current := snapshotBytes(target, e.Offset, len(before))
		if current != e.AfterHex {
			common.Logf("entry %d at 0x%X no longer matches its recorded state, skipping", i, e.Offset)
			continue
		}
		fmt.Printf("undo %s @0x%X (%d bytes)\n", e.Action, e.Offset, len(before))
		if !dryRun {
			copyAt(target, uint32(e.Offset), before)
		}
		undone++
	}
	return undone, nil
}

func newUndoCmd() *cobra.Command {
	var (
		steps  int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "undo <target.bin>",
		Short: "Replay audit log entries in reverse to restore prior bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read target: %w", err)
			}
			entries, err := common.ReadAuditLog(cfg.AuditLog)
			if err != nil {
				return fmt.Errorf("read audit log: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("audit log %s is empty", cfg.AuditLog)
			}
			undone, err := undoEntries(target, entries, steps, dryRun)
			if err != nil {
				return err
			}
			if undone == 0 {
				return fmt.Errorf("nothing to undo")
			}
			if dryRun {
				fmt.Printf("dry run: %d entries would be reverted\n", undone)
				return nil
			}
			if err := os.WriteFile(args[0], target, 0644); err != nil {
				return fmt.Errorf("write target: %w", err)
			}
			fmt.Printf("reverted %d entries\n", undone)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of audit entries to revert")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would change without writing")
	return cmd
}
