package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/adpayload/errs"
	"github.com/arloliu/adpayload/format"
)

// Frame layout sizes in bytes.
const (
	MetaSize   = 1                     // meta byte: formatter and compressor versions
	LengthSize = 4                     // big-endian uint32 payload length
	HeaderSize = MetaSize + LengthSize // fixed header preceding the payload
)

const (
	formatterVersionShift = 5
	compressorVersionMask = 0x1F
)

// Header is the fixed 5 byte prefix of every frame.
//
//	offset 0    meta   (formatterVersion << 5) | compressorVersion
//	offset 1-4  length payload length, big-endian
type Header struct {
	FormatterVersion  format.FormatterVersion
	CompressorVersion format.CompressorVersion
	Length            uint32
}

// MetaByte packs both versions into the meta byte.
//
// Returns errs.ErrInvalidMetaVersion if compressorVersion >= 32 or formatterVersion >= 8.
func MetaByte(fv format.FormatterVersion, cv format.CompressorVersion) (byte, error) {
	if cv > format.MaxCompressorVersion {
		return 0, fmt.Errorf("%w: compressor version %d", errs.ErrInvalidMetaVersion, cv)
	}
	if fv > format.MaxFormatterVersion {
		return 0, fmt.Errorf("%w: formatter version %d", errs.ErrInvalidMetaVersion, fv)
	}

	return byte(fv)<<formatterVersionShift | byte(cv), nil
}

// SplitMetaByte unpacks a meta byte into formatter and compressor versions.
func SplitMetaByte(meta byte) (format.FormatterVersion, format.CompressorVersion) {
	return format.FormatterVersion(meta >> formatterVersionShift), format.CompressorVersion(meta & compressorVersionMask)
}

// Bytes serializes the header.
func (h Header) Bytes() ([]byte, error) {
	b := make([]byte, HeaderSize)
	if err := h.put(b); err != nil {
		return nil, err
	}

	return b, nil
}

func (h Header) put(b []byte) error {
	meta, err := MetaByte(h.FormatterVersion, h.CompressorVersion)
	if err != nil {
		return err
	}

	b[0] = meta
	binary.BigEndian.PutUint32(b[MetaSize:HeaderSize], h.Length)

	return nil
}

// Parse parses the header from a byte slice of exactly HeaderSize bytes.
func (h *Header) Parse(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: header must be %d bytes, got %d", errs.ErrDataSizeMismatch, HeaderSize, len(data))
	}

	h.FormatterVersion, h.CompressorVersion = SplitMetaByte(data[0])
	h.Length = binary.BigEndian.Uint32(data[MetaSize:HeaderSize])

	return nil
}

// ParseHeader parses the header at the start of frame.
//
// Returns errs.ErrDataSizeMismatch if frame is shorter than HeaderSize.
func ParseHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderSize {
		return Header{}, fmt.Errorf("%w: frame of %d bytes is shorter than the %d byte header",
			errs.ErrDataSizeMismatch, len(frame), HeaderSize)
	}

	var h Header
	if err := h.Parse(frame[:HeaderSize]); err != nil {
		return Header{}, err
	}

	return h, nil
}
