//go:build windows

package gdi

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"unsafe"

	"github.com/bryanchriswhite/AlphaShot/internal/matte"
	"github.com/lxn/win"
)

const cursorShowing = 0x1

var (
	procGetCursorInfo = user32.NewProc("GetCursorInfo")
	procCopyIcon      = user32.NewProc("CopyIcon")
)

type cursorInfo struct {
	CbSize      uint32
	Flags       uint32
	HCursor     win.HCURSOR
	PtScreenPos win.POINT
}

// Cursor draws the current pointer twice, over white and over black, and
// recovers its alpha the same way window captures do. This handles colour,
// masked and inverting cursors alike.
func (p *Platform) Cursor() (*matte.Cursor, error) {
	ci := cursorInfo{CbSize: uint32(unsafe.Sizeof(cursorInfo{}))}
	if r, _, err := procGetCursorInfo.Call(uintptr(unsafe.Pointer(&ci))); r == 0 {
		return nil, fmt.Errorf("GetCursorInfo failed: %w", err)
	}
	pos := image.Pt(int(ci.PtScreenPos.X), int(ci.PtScreenPos.Y))
	if ci.Flags&cursorShowing == 0 || ci.HCursor == 0 {
		return &matte.Cursor{Position: pos}, nil
	}

	h, _, _ := procCopyIcon.Call(uintptr(ci.HCursor))
	if h == 0 {
		return nil, errors.New("CopyIcon failed")
	}
	icon := win.HICON(h)
	defer win.DestroyIcon(icon)

	var ii win.ICONINFO
	if !win.GetIconInfo(icon, &ii) {
		return nil, errors.New("GetIconInfo failed")
	}
	if ii.HbmMask != 0 {
		defer win.DeleteObject(win.HGDIOBJ(ii.HbmMask))
	}
	if ii.HbmColor != 0 {
		defer win.DeleteObject(win.HGDIOBJ(ii.HbmColor))
	}

	var colorBmp, maskBmp win.BITMAP
	if ii.HbmColor != 0 {
		win.GetObject(win.HGDIOBJ(ii.HbmColor), unsafe.Sizeof(colorBmp), unsafe.Pointer(&colorBmp))
	}
	win.GetObject(win.HGDIOBJ(ii.HbmMask), unsafe.Sizeof(maskBmp), unsafe.Pointer(&maskBmp))
	w, hgt := cursorSize(int(colorBmp.BmWidth), int(colorBmp.BmHeight), int(maskBmp.BmWidth), int(maskBmp.BmHeight))
	if w <= 0 || hgt <= 0 {
		return &matte.Cursor{Position: pos}, nil
	}

	onWhite, err := drawIcon(icon, w, hgt, white)
	if err != nil {
		return nil, err
	}
	onBlack, err := drawIcon(icon, w, hgt, black)
	if err != nil {
		return nil, err
	}

	img, err := matte.Differentiate(onWhite, onBlack)
	if errors.Is(err, matte.ErrNoContent) {
		return &matte.Cursor{Position: pos}, nil
	}
	if err != nil {
		return nil, err
	}
	return &matte.Cursor{
		Image:    img,
		Position: pos,
		Hotspot:  image.Pt(int(ii.XHotspot), int(ii.YHotspot)),
		Visible:  true,
	}, nil
}

// drawIcon renders icon into a w x h top-down DIB filled with bg.
func drawIcon(icon win.HICON, w, h int, bg color.RGBA) (*image.RGBA, error) {
	screen := win.GetDC(0)
	if screen == 0 {
		return nil, errors.New("GetDC failed")
	}
	defer win.ReleaseDC(0, screen)

	hdc := win.CreateCompatibleDC(screen)
	if hdc == 0 {
		return nil, errors.New("CreateCompatibleDC failed")
	}
	defer win.DeleteDC(hdc)

	bih := win.BITMAPINFOHEADER{
		BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
		BiWidth:       int32(w),
		BiHeight:      -int32(h),
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: win.BI_RGB,
	}
	var bits unsafe.Pointer
	bmp := win.CreateDIBSection(hdc, &bih, win.DIB_RGB_COLORS, &bits, 0, 0)
	if bmp == 0 || bits == nil {
		return nil, errors.New("CreateDIBSection failed")
	}
	defer win.DeleteObject(win.HGDIOBJ(bmp))

	old := win.SelectObject(hdc, win.HGDIOBJ(bmp))
	defer win.SelectObject(hdc, old)

	buf := unsafe.Slice((*byte)(bits), w*h*4)
	fillBGRA(buf, bg)
	if !win.DrawIconEx(hdc, 0, 0, icon, int32(w), int32(h), 0, 0, win.DI_NORMAL) {
		return nil, errors.New("DrawIconEx failed")
	}
	return bgraToRGBA(buf, w, h), nil
}
