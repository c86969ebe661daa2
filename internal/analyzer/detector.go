package analyzer

import "image"

// BlockKind is a rough guess at what a detected block contains.
type BlockKind string

const (
	KindHeading BlockKind = "heading"
	KindText    BlockKind = "text"
	KindFigure  BlockKind = "figure"
	KindUnknown BlockKind = "unknown"
)

// Block is a detected region of interest, in pixel coordinates of the
// analysed image.
type Block struct {
	Rect       image.Rectangle
	Kind       BlockKind
	Confidence float64 // 0.0-1.0
}

// Detector finds regions of interest in a frame.
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// classify guesses the block kind from its shape: wide and short blocks are
// headings or lines of text, squarish ones figures.
func classify(r image.Rectangle, frame image.Rectangle) (BlockKind, float64) {
	w, h := float64(r.Dx()), float64(r.Dy())
	if w == 0 || h == 0 {
		return KindUnknown, 0
	}
	aspect := w / h
	relHeight := h / float64(frame.Dy())
	switch {
	case aspect >= 4 && relHeight < 0.08:
		return KindHeading, 0.6
	case aspect >= 2:
		return KindText, 0.7
	case aspect >= 0.5:
		return KindFigure, 0.8
	default:
		return KindUnknown, 0.5
	}
}
