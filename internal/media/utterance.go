package media

import "bytes"

// UtteranceBuffer accumulates audio payload bytes between turn boundaries.
// It is used by a single goroutine (the session receive loop) and needs no
// locking.
type UtteranceBuffer struct {
	buf bytes.Buffer
}

// Append adds decoded audio payload to the current utterance.
func (u *UtteranceBuffer) Append(payload []byte) {
	u.buf.Write(payload)
}

// Len reports the number of bytes accumulated so far.
func (u *UtteranceBuffer) Len() int {
	return u.buf.Len()
}

// Finalize seals the current utterance and returns its bytes, resetting the
// buffer for the next turn. Calling it again without new audio returns an
// empty slice; callers must skip recognition in that case.
func (u *UtteranceBuffer) Finalize() []byte {
	if u.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, u.buf.Len())
	copy(out, u.buf.Bytes())
	u.buf.Reset()
	return out
}
