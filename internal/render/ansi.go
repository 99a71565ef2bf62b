package render

import (
	"crypto/md5"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"

	"github.com/arcanaland/oracle/internal/card"
)

// Card art size in terminal cells
const (
	ArtWidth  = 40
	ArtHeight = 32
)

// ErrNoImage is returned when a card has no image in the images directory
var ErrNoImage = errors.New("no image found for card")

// imageExtensions are tried in order after the card's canonical .jpg name
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// FindImage looks for the card's image in dir
func FindImage(dir string, c card.Card) (string, error) {
	if dir == "" {
		return "", ErrNoImage
	}
	base := strings.TrimSuffix(c.ImagePath(), filepath.Ext(c.ImagePath()))
	for _, ext := range imageExtensions {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNoImage, c.ImagePath(), dir)
}

// CardArt returns ANSI art for a card, converting its image on first use
// and caching the result under cacheDir.
func CardArt(imagesDir, cacheDir string, c card.Card) (string, error) {
	imagePath, err := FindImage(imagesDir, c)
	if err != nil {
		return "", err
	}

	cacheDir = filepath.Join(cacheDir, "ansi_cache")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create ANSI cache directory: %w", err)
	}

	// Create a cache filename based on the image path
	cachePath := filepath.Join(cacheDir, fmt.Sprintf("%x.ansi", md5.Sum([]byte(imagePath))))
	if data, err := os.ReadFile(cachePath); err == nil {
		return string(data), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to read cached art: %w", err)
	}

	art, err := convertImage(imagePath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cachePath, []byte(art), 0644); err != nil {
		return "", fmt.Errorf("failed to write ANSI art to file: %w", err)
	}
	return art, nil
}

func convertImage(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	return ImageToANSI(img, ArtWidth, ArtHeight), nil
}

// ImageToANSI renders img as width x height cells of upper half blocks in
// 24-bit color. Each cell covers a 2x2 block of the resized image: the top
// pair sets the foreground, the bottom pair the background.
func ImageToANSI(img image.Image, width, height int) string {
	resized := resize.Resize(uint(width*2), uint(height*2), img, resize.Lanczos3)

	var buffer strings.Builder
	for y := 0; y < height*2; y += 2 {
		for x := 0; x < width*2; x += 2 {
			fg := averageColor(colorAt(resized, x, y), colorAt(resized, x+1, y))
			bg := averageColor(colorAt(resized, x, y+1), colorAt(resized, x+1, y+1))
			buffer.WriteString(halfBlock(fg, bg))
		}
		buffer.WriteString("\n")
	}
	return buffer.String()
}

// colorAt returns black outside the image bounds
func colorAt(img image.Image, x, y int) colorful.Color {
	var c color.Color = color.RGBA{0, 0, 0, 255}
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		c = img.At(x, y)
	}
	col, _ := colorful.MakeColor(c)
	return col
}

func averageColor(colors ...colorful.Color) colorful.Color {
	var r, g, b float64
	for _, c := range colors {
		r += c.R
		g += c.G
		b += c.B
	}
	count := float64(len(colors))
	return colorful.Color{R: r / count, G: g / count, B: b / count}
}

func halfBlock(fg, bg colorful.Color) string {
	r1, g1, b1 := fg.Clamped().RGB255()
	r2, g2, b2 := bg.Clamped().RGB255()
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀\x1b[0m", r1, g1, b1, r2, g2, b2)
}
