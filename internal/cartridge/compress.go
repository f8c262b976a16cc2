package cartridge

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressSection zstd-compresses a RAW/IMAGE/FONT section body. PROGRAM
// and PIPELINE sections are never compressed (the loader needs to
// random-access their tables without a full decompress pass), so this is
// only ever called for the asset section kinds.
func CompressSection(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("cartridge: zstd writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, fmt.Errorf("cartridge: zstd compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cartridge: zstd close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressSection reverses CompressSection.
func DecompressSection(body []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cartridge: zstd reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cartridge: zstd decompress: %w", err)
	}
	return out, nil
}

// SectionBody returns a section's body from a decoded Cartridge,
// transparently decompressing it when its Reserved[0] compression flag is
// set.
func (c *Cartridge) SectionBody(name string) ([]byte, error) {
	body, ok := c.Sections[name]
	if !ok {
		return nil, fmt.Errorf("cartridge: no such section %q", name)
	}
	for _, sh := range c.Header.Sections {
		if sh.Name == name && sh.Reserved[0] == CompressionZstd {
			return DecompressSection(body)
		}
	}
	return body, nil
}
