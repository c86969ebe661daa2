package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Pages is an indexed set of still pictures.
type Pages interface {
	PageCount() int
	PageSize(index int) (width, height int, err error)
	RenderPage(index int) (image.Image, error)
	Close() error
}

// FitzPages renders the pages of a PDF (or any document MuPDF opens).
type FitzPages struct {
	doc *fitz.Document
	dpi int
}

// NewFitzPages opens a document. A non-positive dpi means 150.
func NewFitzPages(path string, dpi int) (*FitzPages, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &FitzPages{doc: doc, dpi: dpi}, nil
}

func (f *FitzPages) PageCount() int {
	return f.doc.NumPage()
}

// PageSize returns the rendered size at the configured DPI.
func (f *FitzPages) PageSize(index int) (int, int, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	scale := float64(f.dpi) / 72
	return int(float64(rect.Dx()) * scale), int(float64(rect.Dy()) * scale), nil
}

func (f *FitzPages) RenderPage(index int) (image.Image, error) {
	return f.doc.ImageDPI(index, float64(f.dpi))
}

func (f *FitzPages) Close() error {
	return f.doc.Close()
}

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// ImagePages is a single image or every image of a directory in name order.
type ImagePages struct {
	paths []string
}

func NewImagePages(path string) (*ImagePages, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && isImage(entry.Name()) {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, path)
	}
	return &ImagePages{paths: paths}, nil
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *ImagePages) PageCount() int {
	return len(s.paths)
}

func (s *ImagePages) PageSize(index int) (int, int, error) {
	f, err := os.Open(s.paths[index])
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", s.paths[index], err)
	}
	return cfg.Width, cfg.Height, nil
}

func (s *ImagePages) RenderPage(index int) (image.Image, error) {
	f, err := os.Open(s.paths[index])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.paths[index], err)
	}
	return img, nil
}

func (s *ImagePages) Close() error {
	return nil
}
