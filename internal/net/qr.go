package net

import (
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 256

// QRHandler serves a PNG QR code pointing phones at the controller page.
// The image is rendered once.
func QRHandler(url string, log *zap.Logger) http.Handler {
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		log.Error("qr code render failed", zap.String("url", url), zap.Error(err))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if png == nil {
			http.Error(w, "qr code unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(png)
	})
}
