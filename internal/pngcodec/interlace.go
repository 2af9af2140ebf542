package pngcodec

// pass describes one Adam7 pass: the first pixel and the step between pixels.
type pass struct {
	xOffset, yOffset int
	xFactor, yFactor int
}

var adam7 = [7]pass{
	{0, 0, 8, 8},
	{4, 0, 8, 8},
	{0, 4, 4, 8},
	{2, 0, 4, 4},
	{0, 2, 2, 4},
	{1, 0, 2, 2},
	{0, 1, 1, 2},
}

// size returns the dimensions of the reduced image a pass covers. Either
// may be zero, in which case the pass contributes no bytes at all.
func (p pass) size(width, height int) (int, int) {
	w := (width - p.xOffset + p.xFactor - 1) / p.xFactor
	h := (height - p.yOffset + p.yFactor - 1) / p.yFactor
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return w, h
}
