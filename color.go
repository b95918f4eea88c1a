package cfb

// color is the red-black tree color bit stored in a directory entry.
type color uint8

const (
	red   color = 0
	black color = 1
)

func colorFromByte(b uint8) color {
	if b == colorRed {
		return red
	}
	return black
}
