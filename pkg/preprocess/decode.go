package preprocess

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/instill-ai/breed-recognition/pkg/datamodel"
)

var supportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,
}

// Decoder turns the bytes handed over by the capture collaborator into an
// RGB image.
type Decoder struct {
	// AutoOrient applies the EXIF orientation tag of camera photos.
	AutoOrient bool
	// MaxBytes caps the encoded input size; zero means no cap.
	MaxBytes int64
}

// Decode reads an encoded image from r. It returns the decoded image with
// grayscale inputs already expanded to RGB, and the detected MIME type.
func (d Decoder) Decode(r io.Reader) (image.Image, string, error) {
	if d.MaxBytes > 0 {
		r = io.LimitReader(r, d.MaxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading image: %v", datamodel.ErrInvalidImage, err)
	}
	if d.MaxBytes > 0 && int64(len(b)) > d.MaxBytes {
		return nil, "", fmt.Errorf("%w: image exceeds %d bytes", datamodel.ErrInvalidImage, d.MaxBytes)
	}
	if len(b) == 0 {
		return nil, "", fmt.Errorf("%w: no image data", datamodel.ErrInvalidImage)
	}

	mimeType := strings.Split(mimetype.Detect(b).String(), ";")[0]
	if !supportedMIMETypes[mimeType] {
		return nil, mimeType, fmt.Errorf("%w: unsupported format %s", datamodel.ErrInvalidImage, mimeType)
	}

	var img image.Image
	if d.AutoOrient {
		img, err = imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	} else {
		img, _, err = image.Decode(bytes.NewReader(b))
	}
	if err != nil {
		return nil, mimeType, fmt.Errorf("%w: decoding %s: %v", datamodel.ErrInvalidImage, mimeType, err)
	}

	img = ExpandChannels(img)
	if err := Validate(img); err != nil {
		return nil, mimeType, err
	}

	return img, mimeType, nil
}
