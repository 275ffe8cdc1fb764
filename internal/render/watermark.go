package render

// applyWatermark stamps text into an RGBA pixel buffer as a stub pattern
// of darkened pixel columns (§6.2 initialize_for_rendering WatermarkText,
// SPEC_FULL.md §C.4). It is not a font rasterizer: each character darkens
// a column of pixels by an amount derived from its rune value, enough to
// prove the hook fires on the real render path and to make watermarked
// tiles bytewise distinguishable from unwatermarked ones. Full glyph
// rendering is out of scope.
func applyWatermark(pixels []byte, width, height int, text string) {
	if text == "" || width <= 0 || height <= 0 {
		return
	}
	const bpp = 4
	step := width / (len([]rune(text)) + 1)
	if step == 0 {
		step = 1
	}
	for i, r := range text {
		x := ((i + 1) * step) % width
		shade := byte(r % 64)
		for y := 0; y < height; y++ {
			px := (y*width + x) * bpp
			if px+2 >= len(pixels) {
				continue
			}
			pixels[px] = darken(pixels[px], shade)
			pixels[px+1] = darken(pixels[px+1], shade)
			pixels[px+2] = darken(pixels[px+2], shade)
		}
	}
}

func darken(v, d byte) byte {
	if v < d {
		return 0
	}
	return v - d
}
