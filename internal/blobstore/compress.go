package blobstore

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png"
)

// ErrImageDecode is returned when photo bytes cannot be decoded for
// re-encoding.
var ErrImageDecode = errors.New("blobstore: image decode failed")

const (
	compressStartQuality = 80
	compressQualityFloor = 10
	compressQualityStep  = 10
)

// Compress re-encodes the image as JPEG, stepping the quality down until the
// output fits targetKB or the quality floor is reached. The loop runs at most
// (start-floor)/step + 1 times; the best achievable encoding is returned even
// if it is still over target at the floor.
func Compress(img image.Image, targetKB int) ([]byte, error) {
	targetBytes := targetKB * 1024
	quality := compressStartQuality

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	for buf.Len() > targetBytes && quality > compressQualityFloor {
		quality -= compressQualityStep
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrImageDecode
	}
	return img, nil
}
