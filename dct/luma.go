package dct

// ITU-R BT.601 luma weights, the JPEG convention.
const (
	WeightR = 0.299
	WeightG = 0.587
	WeightB = 0.114
)

// weightNorm is the squared length of the weight vector. Spreading a luma delta d as
// d*w/weightNorm over the channels changes luma by exactly d.
const weightNorm = WeightR*WeightR + WeightG*WeightG + WeightB*WeightB

// Luma returns the BT.601 luminance of an 8-bit RGB triple.
func Luma(r, g, b uint8) float64 {
	return WeightR*float64(r) + WeightG*float64(g) + WeightB*float64(b)
}

// LoadLuma fills dst with the luminance of the 8x8 region at (x0, y0) of an RGBA8888
// buffer whose rows are stride bytes apart.
func LoadLuma(pix []byte, stride, x0, y0 int, dst *Block) {
	for y := 0; y < N; y++ {
		off := (y0+y)*stride + x0*4
		for x := 0; x < N; x++ {
			i := off + x*4
			dst[y][x] = Luma(pix[i], pix[i+1], pix[i+2])
		}
	}
}

// ApplyLuma adds the per-pixel luma change delta to the 8x8 region at (x0, y0) of src
// and writes the result to the same region of dst. The change is spread over R, G
// and B in proportion to the luma weights; channels are rounded and clamped to
// [0, 255]. Alpha is copied unchanged.
func ApplyLuma(dst, src []byte, stride, x0, y0 int, delta *Block) {
	for y := 0; y < N; y++ {
		off := (y0+y)*stride + x0*4
		for x := 0; x < N; x++ {
			i := off + x*4
			d := delta[y][x] / weightNorm
			dst[i] = clamp8(float64(src[i]) + d*WeightR)
			dst[i+1] = clamp8(float64(src[i+1]) + d*WeightG)
			dst[i+2] = clamp8(float64(src[i+2]) + d*WeightB)
			dst[i+3] = src[i+3]
		}
	}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
