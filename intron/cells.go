package intron

// cells is one dense per-base array of intron ids.
type cells interface {
	get(pos int) uint32
	fill(start, end int, id uint32)
}

type cells8 []uint8

func (c cells8) get(pos int) uint32 { return uint32(c[pos]) }

func (c cells8) fill(start, end int, id uint32) {
	v := uint8(id)
	for i := start; i < end; i++ {
		c[i] = v
	}
}

type cells16 []uint16

func (c cells16) get(pos int) uint32 { return uint32(c[pos]) }

func (c cells16) fill(start, end int, id uint32) {
	v := uint16(id)
	for i := start; i < end; i++ {
		c[i] = v
	}
}

type cells32 []uint32

func (c cells32) get(pos int) uint32 { return c[pos] }

func (c cells32) fill(start, end int, id uint32) {
	for i := start; i < end; i++ {
		c[i] = id
	}
}

// cellWidth returns the number of bytes per cell needed to store maxID.
func cellWidth(maxID int) int {
	switch {
	case maxID <= 0xff:
		return 1
	case maxID <= 0xffff:
		return 2
	}
	return 4
}

func newCells(width, length int) cells {
	switch width {
	case 1:
		return make(cells8, length)
	case 2:
		return make(cells16, length)
	}
	return make(cells32, length)
}
