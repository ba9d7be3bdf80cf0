package hwdecode

import (
	"image"
)

// RGBA returns the image as an *image.RGBA. For RGBA output the pixels alias
// Data; the 3-byte formats are expanded into a new buffer with opaque alpha.
func (i *Image) RGBA() *image.RGBA {
	rect := image.Rect(0, 0, i.Width, i.Height)
	if i.Format == OutputFormatRGBA {
		return &image.RGBA{Pix: i.Data, Stride: i.Stride, Rect: rect}
	}

	img := image.NewRGBA(rect)
	for y := 0; y < i.Height; y++ {
		src := i.Data[y*i.Stride : y*i.Stride+i.Width*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+i.Width*4]
		for x := 0; x < i.Width; x++ {
			r, g, b := src[x*3], src[x*3+1], src[x*3+2]
			if i.Format == OutputFormatBGR24 {
				r, b = b, r
			}
			dst[x*4], dst[x*4+1], dst[x*4+2], dst[x*4+3] = r, g, b, 0xff
		}
	}
	return img
}
