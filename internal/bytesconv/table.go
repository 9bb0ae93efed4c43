package bytesconv

// Hex2intTable 将字节映射为十六进制数值，非十六进制字符映射为 16。
var Hex2intTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		switch {
		case i >= '0' && i <= '9':
			t[i] = byte(i - '0')
		case i >= 'a' && i <= 'f':
			t[i] = byte(i - 'a' + 10)
		case i >= 'A' && i <= 'F':
			t[i] = byte(i - 'A' + 10)
		default:
			t[i] = 16
		}
	}
	return t
}()

// ToLowerTable 将 ASCII 大写字母映射为小写，其余字节原样映射。
var ToLowerTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		c := byte(i)
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		t[i] = c
	}
	return t
}()
