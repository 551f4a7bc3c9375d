package detector

import (
	"image"

	"github.com/MeKo-Tech/qrengine/internal/qr"
)

const (
	blockSizePower = 3
	blockSize      = 1 << blockSizePower
	// minHybridSide is the smallest side the block-local threshold handles;
	// smaller images fall back to a global Otsu threshold.
	minHybridSide   = blockSize * 5
	minDynamicRange = 24
)

// Binarize thresholds img into dark (true) and light modules. Large images
// use a local threshold per 8x8 block averaged over its 5x5 neighbourhood,
// which copes with shadows and gradients; tiny images use Otsu's method.
func Binarize(img *image.Gray) *qr.BitMatrix {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	lum := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(lum[y*w:(y+1)*w], img.Pix[off:off+w])
	}
	if w < minHybridSide || h < minHybridSide {
		return thresholdGlobal(lum, w, h, OtsuThreshold(lum))
	}
	return thresholdHybrid(lum, w, h)
}

// OtsuThreshold returns the gray level maximising the between-class
// variance. Pixels at or below it are dark.
func OtsuThreshold(lum []uint8) int {
	if len(lum) == 0 {
		return 0
	}
	var hist [256]int
	for _, v := range lum {
		hist[v]++
	}
	total := len(lum)
	sumAll := 0.0
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	best, maxVariance := 0, 0.0
	sumB, wB := 0.0, 0
	for t, n := range hist {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * n)
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance, best = variance, t
		}
	}
	return best
}

func thresholdGlobal(lum []uint8, w, h, threshold int) *qr.BitMatrix {
	m := qr.NewBitMatrix(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if int(lum[y*w+x]) <= threshold {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

func thresholdHybrid(lum []uint8, w, h int) *qr.BitMatrix {
	subW := (w + blockSize - 1) >> blockSizePower
	subH := (h + blockSize - 1) >> blockSizePower
	black := blackPoints(lum, subW, subH, w, h)

	m := qr.NewBitMatrix(w, h)
	maxX, maxY := w-blockSize, h-blockSize
	for by := 0; by < subH; by++ {
		yoff := min(by<<blockSizePower, maxY)
		top := clamp(by, 2, subH-3)
		for bx := 0; bx < subW; bx++ {
			xoff := min(bx<<blockSizePower, maxX)
			left := clamp(bx, 2, subW-3)
			sum := 0
			for dy := -2; dy <= 2; dy++ {
				row := black[top+dy]
				sum += row[left-2] + row[left-1] + row[left] + row[left+1] + row[left+2]
			}
			threshold := sum / 25
			for y := yoff; y < yoff+blockSize; y++ {
				for x := xoff; x < xoff+blockSize; x++ {
					if int(lum[y*w+x]) <= threshold {
						m.Set(x, y, true)
					}
				}
			}
		}
	}
	return m
}

// blackPoints estimates a threshold per block. Flat blocks take half their
// minimum, or their neighbours' estimate when that is higher, so that
// uniform areas inside a symbol follow the surrounding contrast.
func blackPoints(lum []uint8, subW, subH, w, h int) [][]int {
	maxX, maxY := w-blockSize, h-blockSize
	out := make([][]int, subH)
	for by := range out {
		out[by] = make([]int, subW)
		yoff := min(by<<blockSizePower, maxY)
		for bx := 0; bx < subW; bx++ {
			xoff := min(bx<<blockSizePower, maxX)
			sum, lo, hi := 0, 255, 0
			for y := yoff; y < yoff+blockSize; y++ {
				for _, v := range lum[y*w+xoff : y*w+xoff+blockSize] {
					p := int(v)
					sum += p
					lo = min(lo, p)
					hi = max(hi, p)
				}
			}

			avg := sum >> (2 * blockSizePower)
			if hi-lo <= minDynamicRange {
				avg = lo / 2
				if by > 0 && bx > 0 {
					neighbour := (out[by-1][bx] + 2*out[by][bx-1] + out[by-1][bx-1]) / 4
					if lo < neighbour {
						avg = neighbour
					}
				}
			}
			out[by][bx] = avg
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
