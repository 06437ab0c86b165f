package session

import (
	"github.com/skip2/go-qrcode"

	"github.com/waplink/waplink/internal/apperr"
	"github.com/waplink/waplink/internal/provider"
)

// PairingQR renders the pairing payload's code as a PNG QR image. The
// engines hand the code back as the raw string a WhatsApp client expects
// to scan; rendering it locally saves callers a round trip to the
// engine's own QR endpoint.
func PairingQR(payload *provider.PairingPayload, size int) ([]byte, error) {
	if payload == nil || payload.Code == "" {
		return nil, apperr.Validation("pairing payload has no code to render")
	}
	if size <= 0 {
		size = 256
	}

	png, err := qrcode.Encode(payload.Code, qrcode.Medium, size)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "encode pairing qr", err)
	}
	return png, nil
}
