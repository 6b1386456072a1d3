package qr

import qrcode "github.com/skip2/go-qrcode"

// BadgePNG renders a student's badge QR code as a PNG. The engine only issues
// codes; decoding the optical signal is the scanner's job.
func BadgePNG(studentID string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(Encode(studentID), qrcode.Medium, size)
}
