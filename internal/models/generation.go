package models

import "errors"

// ErrRefused reports that the model provider declined to answer, as
// signalled by its own safety or content filters.
var ErrRefused = errors.New("model declined the request")

// ImagePart is an encoded image handed to a generative model.
type ImagePart struct {
	MIMEType string
	Data     []byte
}
