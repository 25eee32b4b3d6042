package png

import "github.com/skip2/go-qrcode"

func Qr(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, 300)
}

// Terminal renders content as a QR code made of half-block characters,
// suitable for printing directly to a terminal.
func Terminal(content string) (string, error) {
	q, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}
