// Package manifest builds sha256 inventories of session outputs: patched
// binaries, patch containers, reports and audit logs.
package manifest

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"example.com/calbin/internal/common"
)

type Item struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
	Type   string `json:"type"`
}

type Manifest struct {
	CreatedAt time.Time  `json:"createdAt"`
	ShaAlgo   string     `json:"shaAlgo"`
	Items     []Item     `json:"items"`
	Signature *Signature `json:"signature,omitempty"`
}

type Signature struct {
	Type          string `json:"type"`
	CertSubject   string `json:"certSubject,omitempty"`
	Issuer        string `json:"issuer,omitempty"`
	SignatureFile string `json:"signatureFile,omitempty"`
}

// Build hashes every path and classifies it by extension.
func Build(paths []string) (Manifest, error) {
	m := Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
	for _, p := range paths {
		hex, sz, err := common.Sha256OfFile(p)
		if err != nil {
			return m, err
		}
		m.Items = append(m.Items, Item{Path: p, Size: sz, Sha256: hex, Type: classify(p)})
	}
	return m, nil
}

func classify(path string) string {
	switch {
	case hasExt(path, ".bin", ".ori", ".mod", ".frf"):
		return "binary"
	case hasExt(path, ".btp"):
		return "patch"
	case hasExt(path, ".json"):
		return "json"
	case hasExt(path, ".jsonl"):
		return "audit"
	case hasExt(path, ".pdf"):
		return "pdf"
	}
	return "other"
}

func hasExt(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

func Save(m Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// Load reads a manifest back for verification.
func Load(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}
