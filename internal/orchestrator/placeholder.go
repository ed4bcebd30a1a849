package orchestrator

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// placeholderOnce caches the encoded placeholder; it is pure function
// of constants, so encoding once is enough.
var placeholderOnce = sync.OnceValue(func() []byte {
	const size = 64
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	leaf := color.RGBA{R: 0x7c, G: 0xb3, B: 0x42, A: 0xff}
	soil := color.RGBA{R: 0x6d, G: 0x4c, B: 0x41, A: 0xff}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if y >= size*3/4 {
				img.Set(x, y, soil)
			} else {
				img.Set(x, y, leaf)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
})

// PlaceholderPNG returns the deterministic stand-in image used when
// both image models fail. Same bytes on every call.
func PlaceholderPNG() []byte {
	data := placeholderOnce()
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
