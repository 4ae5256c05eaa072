package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/AlphaShot/internal/logger"
)

// maxReplyBytes bounds a single GetImage reply; larger regions are read in
// horizontal strips.
const maxReplyBytes = 8 << 20

// CaptureRect reads r from the root window. With a compositing manager the
// root contents are the composited screen, so translucent windows appear
// blended over whatever is behind them.
func (p *Platform) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	if r.Empty() {
		return nil, fmt.Errorf("empty capture rectangle %v", r)
	}
	depth := int(p.screen.RootDepth)
	if depth != 24 && depth != 32 {
		return nil, fmt.Errorf("unsupported root depth %d", depth)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	w, h := r.Dx(), r.Dy()
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	rows := maxReplyBytes / (w * 4)
	if rows < 1 {
		rows = 1
	}
	for y := 0; y < h; y += rows {
		n := rows
		if y+n > h {
			n = h - y
		}
		reply, err := xproto.GetImage(
			p.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(p.root),
			int16(r.Min.X), int16(r.Min.Y+y),
			uint16(w), uint16(n),
			0xffffffff,
		).Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to get image: %w", err)
		}
		if err := copyBGRX(img, y, reply.Data, w, n); err != nil {
			return nil, err
		}
	}

	logger.WithComponent("x11-platform").Debug().
		Str("rect", r.String()).
		Int("depth", depth).
		Msg("Captured region")
	return img, nil
}

// copyBGRX converts n rows of ZPixmap data (little-endian BGRX, 4 bytes per
// pixel) into dst starting at row y. Alpha is forced opaque.
func copyBGRX(dst *image.RGBA, y int, data []byte, w, n int) error {
	if len(data) < w*n*4 {
		return fmt.Errorf("short image reply: %d bytes for %dx%d", len(data), w, n)
	}
	for row := 0; row < n; row++ {
		src := data[row*w*4 : (row+1)*w*4]
		out := dst.Pix[(y+row)*dst.Stride : (y+row)*dst.Stride+w*4]
		for i := 0; i < len(src); i += 4 {
			out[i] = src[i+2]
			out[i+1] = src[i+1]
			out[i+2] = src[i]
			out[i+3] = 255
		}
	}
	return nil
}
