package render

import (
	"bytes"
	"fmt"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const thumbnailSize = 55

// thumbnail decodes a jpeg, png or webp file and returns a 55px square jpeg.
func thumbnail(path string) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	thumb := imaging.Fill(img, thumbnailSize, thumbnailSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
