package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/janelia-flyem/dvidproxy/dvid"
)

// npy files hold a single C-ordered uint8 array so block files can be loaded
// directly with numpy.load().
var npyMagic = []byte("\x93NUMPY")

const npyAlign = 64

// EncodeNpy returns the volume as a version 1.0 .npy file.
func EncodeNpy(v *dvid.Volume) []byte {
	size := v.Size()
	header := fmt.Sprintf("{'descr': '|u1', 'fortran_order': False, 'shape': (%d, %d, %d), }", size[0], size[1], size[2])

	// magic + version + header length + header + newline must be a multiple of 64.
	prefix := len(npyMagic) + 2 + 2
	total := prefix + len(header) + 1
	if pad := total % npyAlign; pad != 0 {
		header += strings.Repeat(" ", npyAlign-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.Grow(prefix + len(header) + len(v.Bytes()))
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(v.Bytes())
	return buf.Bytes()
}

var (
	npyDescrRE = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	npyOrderRE = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	npyShapeRE = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// DecodeNpy parses a version 1.x or 2.x .npy file holding a 3d uint8 array.
func DecodeNpy(b []byte) (*dvid.Volume, error) {
	if len(b) < len(npyMagic)+4 || !bytes.Equal(b[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}
	major := b[len(npyMagic)]
	b = b[len(npyMagic)+2:]
	var headerLen int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(b))
		b = b[2:]
	case 2, 3:
		if len(b) < 4 {
			return nil, fmt.Errorf("truncated npy header")
		}
		headerLen = int(binary.LittleEndian.Uint32(b))
		b = b[4:]
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}
	if len(b) < headerLen {
		return nil, fmt.Errorf("truncated npy header")
	}
	header, data := string(b[:headerLen]), b[headerLen:]

	m := npyDescrRE.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("npy header missing descr: %q", header)
	}
	switch m[1] {
	case "|u1", "<u1", ">u1", "u1", "|b1":
	default:
		return nil, fmt.Errorf("npy dtype %q is not uint8", m[1])
	}
	if m = npyOrderRE.FindStringSubmatch(header); m != nil && m[1] == "True" {
		return nil, fmt.Errorf("fortran-ordered npy arrays are not supported")
	}
	if m = npyShapeRE.FindStringSubmatch(header); m == nil {
		return nil, fmt.Errorf("npy header missing shape: %q", header)
	}
	var size dvid.Point3d
	var dims int
	for _, s := range strings.Split(m[1], ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if dims == 3 {
			return nil, fmt.Errorf("npy array has more than 3 dimensions")
		}
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad npy shape %q", m[1])
		}
		size[dims] = int32(n)
		dims++
	}
	if dims != 3 {
		return nil, fmt.Errorf("npy array has %d dimensions, expected 3", dims)
	}
	return dvid.NewVolumeFromBytes(size, data)
}
