package usecase

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/teris-io/shortid"
)

// CodeGenerator produces candidate url codes. Every code must satisfy
// entity.IsValidAlias.
type CodeGenerator func() (string, error)

// NewNanoIDGenerator returns codes of the given length over the nanoid
// default alphabet [A-Za-z0-9_-].
func NewNanoIDGenerator(length int) CodeGenerator {
	return func() (string, error) {
		return gonanoid.New(length)
	}
}

// NewShortIDGenerator returns time-ordered codes from a shortid worker.
func NewShortIDGenerator(worker uint8, seed uint64) (CodeGenerator, error) {
	sid, err := shortid.New(worker, shortid.DefaultABC, seed)
	if err != nil {
		return nil, err
	}

	return sid.Generate, nil
}
