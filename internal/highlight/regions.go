package highlight

import (
	"image"
	"sort"
)

// Text-region detection over a grayscale frame: Sobel edge magnitude,
// binary threshold, morphological close with a wide flat kernel to join
// glyphs into lines, then connected-component bounding boxes filtered by
// size and aspect ratio. This stands in for a contour library; killfeeds and
// banner text produce dense horizontal edge runs that survive the filter.

const (
	edgeThreshold   = 50
	closeKernelW    = 20
	closeKernelH    = 5
	maxRegions      = 5
	minRegionWidth  = 15
	maxRegionHeight = 200
	minRegionArea   = 100
)

// Region is a candidate text rectangle.
type Region struct {
	X, Y, W, H int
}

// DetectTextRegions finds up to maxRegions text-like rectangles in a frame.
func DetectTextRegions(img *image.Gray) []Region {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return nil
	}

	binary := sobelBinary(img, w, h)
	closed := morphClose(binary, w, h, closeKernelW, closeKernelH)
	regions := boundingBoxes(closed, w, h)

	var filtered []Region
	for _, r := range regions {
		if r.W < minRegionWidth || r.H > maxRegionHeight {
			continue
		}
		aspect := float64(r.W) / float64(maxInt(r.H, 1))
		if aspect < 0.5 || aspect > 30 {
			continue
		}
		if r.W*r.H < minRegionArea {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].W*filtered[i].H > filtered[j].W*filtered[j].H
	})
	if len(filtered) > maxRegions {
		filtered = filtered[:maxRegions]
	}
	return filtered
}

// sobelBinary computes |Gx|+|Gy| and thresholds it into a bitmap.
func sobelBinary(img *image.Gray, w, h int) []bool {
	b := img.Bounds()
	at := func(x, y int) int {
		return int(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
	}
	out := make([]bool, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1) +
				at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if absInt(gx)+absInt(gy) > edgeThreshold*4 {
				out[y*w+x] = true
			}
		}
	}
	return out
}

// morphClose dilates then erodes with a kw x kh rectangular kernel.
func morphClose(src []bool, w, h, kw, kh int) []bool {
	dilated := dilate(src, w, h, kw, kh)
	return erode(dilated, w, h, kw, kh)
}

func dilate(src []bool, w, h, kw, kh int) []bool {
	out := make([]bool, w*h)
	rx, ry := kw/2, kh/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !src[y*w+x] {
				continue
			}
			for dy := -ry; dy <= ry; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -rx; dx <= rx; dx++ {
					xx := x + dx
					if xx >= 0 && xx < w {
						out[yy*w+xx] = true
					}
				}
			}
		}
	}
	return out
}

func erode(src []bool, w, h, kw, kh int) []bool {
	out := make([]bool, w*h)
	rx, ry := kw/2, kh/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			keep := true
			for dy := -ry; dy <= ry && keep; dy++ {
				yy := y + dy
				for dx := -rx; dx <= rx; dx++ {
					xx := x + dx
					if yy < 0 || yy >= h || xx < 0 || xx >= w || !src[yy*w+xx] {
						keep = false
						break
					}
				}
			}
			out[y*w+x] = keep
		}
	}
	return out
}

// boundingBoxes labels 4-connected components and returns their rectangles.
func boundingBoxes(mask []bool, w, h int) []Region {
	visited := make([]bool, w*h)
	var regions []Region
	var stack []int

	for start := 0; start < w*h; start++ {
		if !mask[start] || visited[start] {
			continue
		}
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY
		stack = append(stack[:0], start)
		visited[start] = true

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := idx%w, idx/w
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
			for _, n := range [4]int{idx - 1, idx + 1, idx - w, idx + w} {
				if n < 0 || n >= w*h || visited[n] || !mask[n] {
					continue
				}
				// guard horizontal wrap
				if (n == idx-1 && x == 0) || (n == idx+1 && x == w-1) {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}
		regions = append(regions, Region{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1})
	}
	return regions
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
