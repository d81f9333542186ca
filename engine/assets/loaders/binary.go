package loaders

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/vkcube/engine/core"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

// bytesToBytecode reinterprets b as little-endian 32-bit words and checks the
// SPIR-V header.
func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: size %d is not a non-zero multiple of 4", core.ErrInvalidShader, len(b))
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != SPIRVMagic {
		return nil, fmt.Errorf("%w: bad magic number 0x%08x", core.ErrInvalidShader, byteCode[0])
	}
	return byteCode, nil
}
