package format

import "errors"

var (
	// ErrBlockSize indicates a block size that cannot hold the link fields.
	ErrBlockSize = errors.New("format: invalid block size")
	// ErrTooManyBlocks indicates a store larger than 15-bit indices can address.
	ErrTooManyBlocks = errors.New("format: too many blocks")
	// ErrTooFewBlocks indicates a store without room for the sentinel and one run.
	ErrTooFewBlocks = errors.New("format: too few blocks")
)
