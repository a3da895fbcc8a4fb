// Package images ingests uploaded book images. An upload is filtered by
// declared type, size and sniffed content, persisted under a generated name,
// then transcoded on the worker pool into a fixed-size JPEG cover with a
// BlurHash placeholder.
package images
