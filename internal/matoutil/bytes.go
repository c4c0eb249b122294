// Package matoutil collects small byte helpers shared by the
// redistribution loop and the log writer, the Go analogue of the
// original's mato-utils.c.
package matoutil

// CopyBytes returns a private copy of p, the same "own your bytes"
// discipline the framework relies on for Copy-kind deliveries and
// anything else that must outlive the caller's buffer.
func CopyBytes(p []byte) []byte {
	if p == nil {
		return nil
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	return cp
}
