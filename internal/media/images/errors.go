package images

import "errors"

var (
	// ErrUnsupportedType is returned when the declared or sniffed type is not
	// JPEG or PNG.
	ErrUnsupportedType = errors.New("unsupported image type")

	// ErrPayloadTooLarge is returned when the upload exceeds the size limit.
	ErrPayloadTooLarge = errors.New("image payload too large")

	// ErrCorruptImage is returned when the payload cannot be decoded.
	ErrCorruptImage = errors.New("corrupt image")

	// ErrInvalidName is returned for blob names that could escape the store
	// directory.
	ErrInvalidName = errors.New("invalid blob name")
)
