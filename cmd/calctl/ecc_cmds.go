package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"example.com/calbin/internal/common"
	"example.com/calbin/internal/ecc"
)

func newEccCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecc",
		Short: "Inspect and strip flash ECC interleaving",
	}
	cmd.AddCommand(newEccDetectCmd(), newEccStripCmd(), newEccGroupCmd())
	return cmd
}

func newEccDetectCmd() *cobra.Command {
	var samples int
	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Heuristically check whether an image carries interleaved ECC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			confidence, hasEcc := ecc.DetectEccPresence(buf, samples)
			fmt.Printf("image: %s (%s)\n", args[0], common.FormatBytes(int64(len(buf))))
			fmt.Printf("ecc confidence: %.2f\n", confidence)
			if hasEcc {
				fmt.Println("verdict: ECC bytes present")
			} else {
				fmt.Println("verdict: no ECC interleaving")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 32, "number of 64-byte blocks to sample")
	return cmd
}

func newEccStripCmd() *cobra.Command {
	var (
		outFlag    string
		verifyFlag bool
	)
	cmd := &cobra.Command{
		Use:   "strip <image>",
		Short: "Remove interleaved ECC bytes from a flash image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if outFlag == "" {
				outFlag = args[0] + ".stripped"
			}

			metrics := common.NewMetrics()
			metrics.SetTotalBytes(int64(len(buf)))
			metrics.Start()

			if verifyFlag {
				if err := verifyEccBlocks(buf, metrics); err != nil {
					return err
				}
			}

			stripped := ecc.StripEccBytes(buf)
			metrics.AddBytes(int64(len(buf)))
			metrics.Stop()

			if err := os.WriteFile(outFlag, stripped, 0644); err != nil {
				return fmt.Errorf("write stripped image: %w", err)
			}
			snap := metrics.Snapshot()
			fmt.Printf("stripped %s -> %s (%s in, %s out)\n",
				args[0], outFlag,
				common.FormatBytes(int64(len(buf))), common.FormatBytes(int64(len(stripped))))
			if verifyFlag {
				fmt.Printf("groups checked: %d, corrections: %d, uncorrectable: %d\n",
					snap.Groups, snap.Corrections, snap.Uncorrectable)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outFlag, "out", "", "output path (default <image>.stripped)")
	cmd.Flags().BoolVar(&verifyFlag, "verify", false, "validate every ECC group before stripping")
	return cmd
}

// verifyEccBlocks walks every 64-byte physical block, decoding each of the
// four protected 8-byte groups against its stored parity byte. Single-bit
// hits are counted as corrections; multi-bit damage fails the run.
func verifyEccBlocks(buf []byte, metrics *common.Metrics) error {
	blocks := len(buf) / ecc.PhysicalBlockSize
	bar := progressbar.DefaultBytes(int64(blocks*ecc.PhysicalBlockSize), "verifying ecc")
	var damaged int
	for b := 0; b < blocks; b++ {
		base := b * ecc.PhysicalBlockSize
		// Groups protected by the parity bytes at +30/+31 and +62/+63.
		pairs := [4][2]int{
			{base, base + 30},
			{base + 8, base + 31},
			{base + 32, base + 62},
			{base + 40, base + 63},
		}
		for _, pair := range pairs {
			metrics.AddGroup()
			group, err := ecc.DecodeEcc8(buf, pair[0], buf[pair[1]])
			switch {
			case err == nil:
				if !bytes.Equal(group, buf[pair[0]:pair[0]+ecc.GroupSize]) {
					metrics.IncCorrection()
				}
			case errors.Is(err, ecc.ErrUncorrectable):
				damaged++
				metrics.IncUncorrectable()
			default:
				return err
			}
		}
		bar.Add(ecc.PhysicalBlockSize)
		metrics.AddBytes(int64(ecc.PhysicalBlockSize))
	}
	bar.Finish()
	fmt.Println()
	if damaged > 0 {
		return fmt.Errorf("%d ecc groups are uncorrectable", damaged)
	}
	return nil
}

func newEccGroupCmd() *cobra.Command {
	var (
		offsetFlag int64
		storedFlag int64
	)
	cmd := &cobra.Command{
		Use:   "group <image>",
		Short: "Decode a single 8-byte ECC group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if offsetFlag < 0 || offsetFlag+ecc.GroupSize > int64(len(buf)) {
				return fmt.Errorf("group at 0x%X extends past %s", offsetFlag, common.FormatBytes(int64(len(buf))))
			}
			stored := byte(storedFlag)
			if storedFlag < 0 {
				stored = ecc.CalculateEcc8(buf, int(offsetFlag))
				fmt.Printf("computed parity: 0x%02X\n", stored)
			}
			group, err := ecc.DecodeEcc8(buf, int(offsetFlag), stored)
			if err != nil {
				return err
			}
			fmt.Printf("group @0x%X: % X\n", offsetFlag, group)
			return nil
		},
	}
	cmd.Flags().Int64Var(&offsetFlag, "offset", 0, "byte offset of the 8-byte group")
	cmd.Flags().Int64Var(&storedFlag, "stored", -1, "stored parity byte (-1 computes it)")
	return cmd
}
