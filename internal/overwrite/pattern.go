package overwrite

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand/v2"

	"wipe-go/internal/wipe"
)

// source produces the bytes of one pass. Block contents depend only on the
// block index, so verify can regenerate any block without replaying the
// whole pass.
type source struct {
	pattern wipe.Pattern
	seed    [32]byte
}

func newSource(pattern wipe.Pattern) (*source, error) {
	s := &source{pattern: pattern}
	switch pattern {
	case wipe.PatternZero:
	case wipe.PatternRandom:
		if _, err := rand.Read(s.seed[:]); err != nil {
			return nil, fmt.Errorf("seeding random pattern: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported pattern %q", pattern)
	}
	return s, nil
}

// fill writes the content of block idx into buf.
func (s *source) fill(buf []byte, idx int64) {
	if s.pattern == wipe.PatternZero {
		clear(buf)
		return
	}
	seed := s.seed
	binary.LittleEndian.PutUint64(seed[24:], binary.LittleEndian.Uint64(seed[24:])^uint64(idx))
	mrand.NewChaCha8(seed).Read(buf)
}
