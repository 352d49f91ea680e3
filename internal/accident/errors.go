package accident

import "errors"

var (
	// ErrDecode means the source clip could not be opened or read.
	ErrDecode = errors.New("decode clip")
	// ErrMotion means optical flow could not be computed.
	ErrMotion = errors.New("score motion")
	// ErrDetect means the object detector failed on a frame.
	ErrDetect = errors.New("detect vehicles")
	// ErrEncode means the evidence clip could not be written.
	ErrEncode = errors.New("encode clip")
)
