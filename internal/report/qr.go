package report

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// PatchStampQR creates a QR code PNG identifying a patch container by its
// soft code and body checksum, for printable traceability.
func PatchStampQR(softCode string, checksum uint32, size int) ([]byte, error) {
	code := strings.TrimSpace(softCode)
	if code == "" {
		return nil, fmt.Errorf("soft code is empty")
	}
	if size <= 0 {
		size = 128
	}
	payload := fmt.Sprintf("BTP:%s:%08X", code, checksum)
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}
