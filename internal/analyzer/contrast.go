package analyzer

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// ContrastDetector finds blocks with a Sobel edge pass, dilation to merge
// nearby edges and connected-component bounding boxes.
type ContrastDetector struct {
	// MinArea drops blocks smaller than this fraction of the frame.
	MinArea float64
	// MaxArea drops blocks covering more than this fraction of the frame.
	MaxArea float64
	// EdgeThreshold is the gradient magnitude that counts as an edge.
	EdgeThreshold float64
	// Dilation is the kernel radius used to connect edges.
	Dilation int
	// AnalysisWidth downsamples wider frames before analysis.
	AnalysisWidth int
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinArea:       0.002,
		MaxArea:       0.9,
		EdgeThreshold: 30,
		Dilation:      2,
		AnalysisWidth: 640,
	}
}

// Detect returns blocks in the coordinates of img.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	gray, scale := d.prepare(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	edges := sobel(gray.Pix, gray.Stride, w, h, d.EdgeThreshold)
	for range 2 {
		edges = dilate(edges, w, h, d.Dilation)
	}

	frameArea := float64(w * h)
	var blocks []Block
	for _, r := range components(edges, w, h) {
		frac := float64(r.Dx()*r.Dy()) / frameArea
		if frac < d.MinArea || frac > d.MaxArea {
			continue
		}
		rect := image.Rect(
			bounds.Min.X+int(math.Floor(float64(r.Min.X)*scale)),
			bounds.Min.Y+int(math.Floor(float64(r.Min.Y)*scale)),
			bounds.Min.X+int(math.Ceil(float64(r.Max.X)*scale)),
			bounds.Min.Y+int(math.Ceil(float64(r.Max.Y)*scale)),
		).Intersect(bounds)
		kind, confidence := classify(rect, bounds)
		blocks = append(blocks, Block{Rect: rect, Kind: kind, Confidence: confidence})
	}
	return blocks, nil
}

// prepare converts to grayscale, downsampling to AnalysisWidth. The returned
// scale maps analysis pixels back to source pixels.
func (d *ContrastDetector) prepare(img image.Image) (*image.Gray, float64) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	scale := 1.0
	if d.AnalysisWidth > 0 && w > d.AnalysisWidth {
		scale = float64(w) / float64(d.AnalysisWidth)
		w = d.AnalysisWidth
		h = max(1, int(math.Round(float64(h)/scale)))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	if scale == 1 {
		xdraw.Draw(gray, gray.Rect, img, bounds.Min, xdraw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(gray, gray.Rect, img, bounds, xdraw.Src, nil)
	}
	return gray, scale
}

var (
	sobelX = [3][3]int{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]int{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

func sobel(pix []uint8, stride, w, h int, threshold float64) []bool {
	edges := make([]bool, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var gx, gy int
			for ky := -1; ky <= 1; ky++ {
				row := (y + ky) * stride
				for kx := -1; kx <= 1; kx++ {
					p := int(pix[row+x+kx])
					gx += p * sobelX[ky+1][kx+1]
					gy += p * sobelY[ky+1][kx+1]
				}
			}
			edges[y*w+x] = math.Hypot(float64(gx), float64(gy)) > threshold
		}
	}
	return edges
}

// dilate is a separable square max filter of the given radius.
func dilate(src []bool, w, h, radius int) []bool {
	if radius <= 0 {
		return src
	}
	rows := make([]bool, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for k := max(0, x-radius); k <= min(w-1, x+radius); k++ {
				if src[y*w+k] {
					rows[y*w+x] = true
					break
				}
			}
		}
	}
	out := make([]bool, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for k := max(0, y-radius); k <= min(h-1, y+radius); k++ {
				if rows[k*w+x] {
					out[y*w+x] = true
					break
				}
			}
		}
	}
	return out
}

// components returns the bounding boxes of 4-connected set pixels, in scan order.
func components(mask []bool, w, h int) []image.Rectangle {
	visited := make([]bool, len(mask))
	var rects []image.Rectangle
	var stack []int
	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		r := image.Rect(start%w, start/w, start%w+1, start/w+1)
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			r = r.Union(image.Rect(x, y, x+1, y+1))

			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[0] >= w || n[1] < 0 || n[1] >= h {
					continue
				}
				j := n[1]*w + n[0]
				if mask[j] && !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}
		rects = append(rects, r)
	}
	return rects
}
