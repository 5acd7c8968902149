package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/calbin/internal/common"
	"example.com/calbin/internal/crypto"
	"example.com/calbin/internal/manifest"
)

func newManifestCmd() *cobra.Command {
	var (
		outFlag  string
		keyFlag  string
		certFlag string
	)
	cmd := &cobra.Command{
		Use:   "manifest <file>...",
		Short: "Build a hashed delivery manifest, optionally signed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Build(args)
			if err != nil {
				return fmt.Errorf("build manifest: %w", err)
			}
			if keyFlag != "" {
				if err := signManifest(&m, outFlag, keyFlag, certFlag); err != nil {
					return err
				}
			}
			if err := manifest.Save(m, outFlag); err != nil {
				return fmt.Errorf("save manifest: %w", err)
			}
			fmt.Printf("manifest %s: %d items\n", outFlag, len(m.Items))
			for _, it := range m.Items {
				fmt.Printf("  %-8s %-40s %s\n", it.Type, it.Path, common.FormatBytes(it.Size))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outFlag, "out", "manifest.json", "manifest output path")
	cmd.Flags().StringVar(&keyFlag, "sign-key", "", "RSA private key PEM to sign with")
	cmd.Flags().StringVar(&certFlag, "sign-cert", "", "signer certificate PEM recorded in the manifest")
	return cmd
}

// signManifest signs the canonical item list so adding the signature block
// afterwards does not invalidate it. The verifier re-derives the same
// payload from the saved manifest.
func signManifest(m *manifest.Manifest, out, keyPath, certPath string) error {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	payload, err := manifestPayload(*m)
	if err != nil {
		return err
	}
	jws, err := crypto.SignDetachedJWS(payload, keyPEM)
	if err != nil {
		return fmt.Errorf("sign manifest: %w", err)
	}
	sigPath := out + ".jws"
	jb, err := json.MarshalIndent(jws, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(sigPath, jb, 0644); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}
	sig := &manifest.Signature{
		Type:          "RS256",
		SignatureFile: sigPath,
	}
	if certPath != "" {
		sig.CertSubject = certPath
	}
	m.Signature = sig
	common.Logf("manifest signature written to %s", sigPath)
	return nil
}

// manifestPayload serializes the signed portion of a manifest: everything
// except the signature block itself.
func manifestPayload(m manifest.Manifest) ([]byte, error) {
	m.Signature = nil
	return json.Marshal(m)
}

func newVerifySignatureCmd() *cobra.Command {
	var certFlag string
	cmd := &cobra.Command{
		Use:   "verify-signature <manifest.json>",
		Short: "Verify a manifest's detached JWS signature and item hashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			if m.Signature == nil || m.Signature.SignatureFile == "" {
				return fmt.Errorf("manifest %s carries no signature", args[0])
			}
			sigData, err := os.ReadFile(m.Signature.SignatureFile)
			if err != nil {
				return fmt.Errorf("read signature: %w", err)
			}
			jws, err := crypto.ParseDetachedJWS(sigData)
			if err != nil {
				return fmt.Errorf("parse signature: %w", err)
			}
			certPEM, err := os.ReadFile(certFlag)
			if err != nil {
				return fmt.Errorf("read certificate: %w", err)
			}
			payload, err := manifestPayload(m)
			if err != nil {
				return err
			}
			if err := crypto.VerifyDetachedJWS(payload, jws, certPEM); err != nil {
				return fmt.Errorf("signature invalid: %w", err)
			}
			fmt.Println("signature: OK")

			// The signature only covers the recorded hashes; re-hash the
			// files so a swapped binary is caught too.
			var stale int
			for _, it := range m.Items {
				sum, _, err := common.Sha256OfFile(it.Path)
				if err != nil {
					fmt.Printf("  %-40s MISSING (%v)\n", it.Path, err)
					stale++
					continue
				}
				if sum != it.Sha256 {
					fmt.Printf("  %-40s HASH MISMATCH\n", it.Path)
					stale++
					continue
				}
				fmt.Printf("  %-40s OK\n", it.Path)
			}
			if stale > 0 {
				return fmt.Errorf("%d manifest items fail verification", stale)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&certFlag, "cert", "", "signer certificate PEM")
	cmd.MarkFlagRequired("cert")
	return cmd
}
