package extractor

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Image runs OCR over a raster image and builds an objective description
// from enumerable facts (format, dimensions, EXIF capture data). No
// interpretive language: the description policy exists to keep hallucinated
// judgments out of the note graph.
type Image struct {
	tesseractPath string
	language      string
	runner        commandRunner
}

// NewImage builds the image extractor. language is the tesseract language
// selector, e.g. "eng".
func NewImage(tesseractPath, language string) *Image {
	return &Image{
		tesseractPath: tesseractPath,
		language:      language,
		runner:        execRunner{},
	}
}

// Extract OCRs the image at ref and returns the recognized text combined
// with the factual description, plus EXIF-derived metadata.
func (i *Image) Extract(ctx context.Context, ref string) (*Result, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, extractionErr("image", fmt.Sprintf("cannot read %s", ref), err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, extractionErr("image", "unsupported or corrupt image", err)
	}

	metadata := map[string]any{
		"format": format,
		"width":  cfg.Width,
		"height": cfg.Height,
	}

	descParts := []string{
		fmt.Sprintf("%s image, %dx%d pixels", strings.ToUpper(format), cfg.Width, cfg.Height),
	}

	// EXIF is optional; many screenshots carry none.
	if _, err := f.Seek(0, 0); err == nil {
		if x, err := exif.Decode(f); err == nil {
			if taken, err := x.DateTime(); err == nil {
				metadata["exif_captured_at"] = taken.UTC().Format(time.RFC3339)
				descParts = append(descParts, "captured "+taken.Format("2006-01-02 15:04"))
			}
			if lat, long, err := x.LatLong(); err == nil {
				metadata["exif_latitude"] = lat
				metadata["exif_longitude"] = long
				descParts = append(descParts, fmt.Sprintf("taken at %.5f, %.5f", lat, long))
			}
			if tag, err := x.Get(exif.Model); err == nil {
				if model, err := tag.StringVal(); err == nil && model != "" {
					metadata["exif_camera_model"] = model
				}
			}
		}
	}

	// "stdout" makes tesseract print recognized text instead of writing files.
	ocr, err := i.runner.Run(ctx, i.tesseractPath, ref, "stdout", "-l", i.language)
	if err != nil {
		return nil, extractionErr("image", "ocr failed", err)
	}
	text := strings.TrimSpace(ocr.Stdout)
	metadata["has_text"] = text != ""
	if text != "" {
		metadata["word_count"] = len(strings.Fields(text))
	}

	description := strings.Join(descParts, ", ")
	combined := text
	if combined == "" {
		combined = description
	} else {
		combined = fmt.Sprintf("%s\n\n[Image description: %s]", text, description)
	}

	return &Result{Text: combined, Metadata: metadata}, nil
}
