package output

// CRC-7 as used by Pololu Maestro serial commands.
// See: https://www.pololu.com/docs/0J40/5.d

const crc7Poly = 0x91

var crcTable [256]uint8

func init() {
	for i := 0; i < 256; i++ {
		crcTable[i] = crcByte(uint8(i))
	}
}

func crcByte(val uint8) uint8 {
	for j := 0; j < 8; j++ {
		if val&1 != 0 {
			val ^= crc7Poly
		}
		val >>= 1
	}
	return val
}

func crc7(buf []byte) uint8 {
	var crc uint8
	for _, v := range buf {
		crc = crcTable[crc^v]
	}
	return crc & 0x7f
}
