// Package imaging is the logo pipeline: fetch raw bytes, decode them into
// an image handle, and scale down for table rendering. A decode failure
// drops the logo; it is never an error the caller acts on.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	xdraw "golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Decoder turns raw logo bytes into an image, or fails.
type Decoder interface {
	Decode(data []byte) (image.Image, error)
}

// StdDecoder decodes with the registered stdlib formats (png, jpeg, gif).
type StdDecoder struct{}

func (StdDecoder) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// HTTPClient describes the outbound HTTP capability.
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

const maxLogoBytes = 4 << 20

// FetchLogo downloads an image from a direct URL and decodes it. Both
// providers share this step; only how they obtain the URL differs.
func FetchLogo(ctx context.Context, hc HTTPClient, url string, dec Decoder) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s -> %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return nil, err
	}
	return dec.Decode(data)
}

// Thumbnail scales src down so its longer side is at most maxSize pixels,
// preserving aspect ratio. Images already small enough pass through.
func Thumbnail(src image.Image, maxSize int) image.Image {
	if src == nil || maxSize <= 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSize && h <= maxSize {
		return src
	}
	longer := w
	if h > longer {
		longer = h
	}
	scale := float64(maxSize) / float64(longer)
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}
