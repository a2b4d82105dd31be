package byteport

// DevNullPort implements Port for the `.` output sentinel: writes are
// discarded without a system call, and reads are never permitted
// (§4.5). out_full is deliberately NOT incremented by the engine for
// this variant, so "copy to /dev/null" reports input volume only.
type DevNullPort struct {
	pos int64
}

func NewDevNullPort() *DevNullPort {
	return &DevNullPort{}
}

func (p *DevNullPort) Variant() Variant { return VariantDevNull }

func (p *DevNullPort) SeekTo(offset int64) error {
	p.pos = offset
	return nil
}

func (p *DevNullPort) ReadChunk(buf []byte) (int, bool, error) {
	return 0, true, ErrReadNotPermitted
}

func (p *DevNullPort) WriteChunk(buf []byte) (int, error) {
	p.pos += int64(len(buf))
	return len(buf), nil
}

func (p *DevNullPort) Close() error {
	return nil
}
