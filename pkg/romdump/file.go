// Copyright 2026 ucov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package romdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ucov-project/ucov/pkg/osutil"
	"github.com/ucov-project/ucov/pkg/ucode"
	"github.com/ulikunitz/xz"
)

// Image files start with an 8-byte magic, a format version, the CPU
// model and the triad count, followed by the instruction words and the
// sequence words, all little-endian. Files with the .xz suffix are
// xz-compressed.
const (
	fileMagic   = "UCOVDUMP"
	fileVersion = 1
)

var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// LoadFile reads a ROM image from a file, transparently decompressing
// xz-compressed files.
func LoadFile(filename string) (*Dump, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM image: %w", err)
	}
	if bytes.HasPrefix(data, xzMagic) {
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open xz stream in %v: %w", filename, err)
		}
		if data, err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("failed to decompress %v: %w", filename, err)
		}
	}
	dump, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return dump, nil
}

// SaveFile writes the image to a file, compressing it when the name
// carries the .xz suffix.
func (d *Dump) SaveFile(filename string) error {
	data := d.Serialize()
	if strings.HasSuffix(filename, ".xz") {
		buf := new(bytes.Buffer)
		w, err := xz.NewWriter(buf)
		if err != nil {
			return fmt.Errorf("failed to create xz stream: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to compress ROM image: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("failed to finish xz stream: %w", err)
		}
		data = buf.Bytes()
	}
	return osutil.WriteFile(filename, data)
}

// Serialize encodes the image into the file format.
func (d *Dump) Serialize() []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(fileMagic)
	binary.Write(buf, binary.LittleEndian, uint32(fileVersion))
	binary.Write(buf, binary.LittleEndian, d.model)
	binary.Write(buf, binary.LittleEndian, uint32(len(d.seqws)))
	binary.Write(buf, binary.LittleEndian, d.instrs)
	binary.Write(buf, binary.LittleEndian, d.seqws)
	return buf.Bytes()
}

// Deserialize decodes an image from the file format.
func Deserialize(data []byte) (*Dump, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != fileMagic {
		return nil, fmt.Errorf("not a ROM image file")
	}
	var version, model, triads uint32
	for _, v := range []*uint32{&version, &model, &triads} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("truncated ROM image header")
		}
	}
	if version != fileVersion {
		return nil, fmt.Errorf("ROM image format version %v is not supported", version)
	}
	if int(triads) > int(ucode.ROMSize)/4 {
		return nil, fmt.Errorf("ROM image of %v triads exceeds ROM size", triads)
	}
	instrs := make([]uint64, 3*triads)
	seqws := make([]uint32, triads)
	if err := binary.Read(r, binary.LittleEndian, instrs); err != nil {
		return nil, fmt.Errorf("truncated instruction words")
	}
	if err := binary.Read(r, binary.LittleEndian, seqws); err != nil {
		return nil, fmt.Errorf("truncated sequence words")
	}
	return New(model, instrs, seqws)
}
