package document

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// statusQR encodes the public status-page URL for a folio as a PNG. The code
// on the printed permit lets an officer scan straight into the live record.
func statusQR(baseURL, folio string, sizePx int) ([]byte, error) {
	url := fmt.Sprintf("%s/estado_folio/%s", baseURL, folio)
	png, err := qrcode.Encode(url, qrcode.Medium, sizePx)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %s: %w", folio, err)
	}
	return png, nil
}
