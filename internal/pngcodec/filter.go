package pngcodec

// Scanline filter types.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
	nFilter   = 5
)

func abs8(d uint8) int {
	if d < 128 {
		return int(d)
	}
	return 256 - int(d)
}

func paeth(a, b, c uint8) uint8 {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = pa + pb
	if pa < 0 {
		pa = -pa
	}
	if pb < 0 {
		pb = -pb
	}
	if pc < 0 {
		pc = -pc
	}
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// unfilter reverses filter ft in place on cdat using the previous
// (already reconstructed) row pdat. bpp is the filter stride in bytes.
func unfilter(ft uint8, cdat, pdat []uint8, bpp int) bool {
	switch ft {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += cdat[i-bpp]
		}
	case ftUp:
		for i, p := range pdat {
			cdat[i] += p
		}
	case ftAverage:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bpp]) + int(pdat[i])) / 2)
		}
	case ftPaeth:
		for i := 0; i < bpp && i < len(cdat); i++ {
			cdat[i] += paeth(0, pdat[i], 0)
		}
		for i := bpp; i < len(cdat); i++ {
			cdat[i] += paeth(cdat[i-bpp], pdat[i], pdat[i-bpp])
		}
	default:
		return false
	}
	return true
}

// applyFilter writes the ft-filtered form of cdat into out.
func applyFilter(ft uint8, out, cdat, pdat []uint8, bpp int) {
	switch ft {
	case ftNone:
		copy(out, cdat)
	case ftSub:
		for i := range cdat {
			var left uint8
			if i >= bpp {
				left = cdat[i-bpp]
			}
			out[i] = cdat[i] - left
		}
	case ftUp:
		for i := range cdat {
			out[i] = cdat[i] - pdat[i]
		}
	case ftAverage:
		for i := range cdat {
			var left int
			if i >= bpp {
				left = int(cdat[i-bpp])
			}
			out[i] = cdat[i] - uint8((left+int(pdat[i]))/2)
		}
	case ftPaeth:
		for i := range cdat {
			var left, upLeft uint8
			if i >= bpp {
				left = cdat[i-bpp]
				upLeft = pdat[i-bpp]
			}
			out[i] = cdat[i] - paeth(left, pdat[i], upLeft)
		}
	}
}

// chooseFilter picks the filter whose output has the smallest sum of
// absolute signed residuals, the heuristic libpng recommends. scratch must
// hold nFilter rows of len(cdat) bytes; the chosen row is returned.
func chooseFilter(scratch [][]uint8, cdat, pdat []uint8, bpp int) (uint8, []uint8) {
	best := uint8(ftNone)
	bestSum := -1
	for ft := uint8(ftNone); ft < nFilter; ft++ {
		out := scratch[ft]
		applyFilter(ft, out, cdat, pdat, bpp)
		sum := 0
		for _, v := range out {
			sum += abs8(v)
			if bestSum >= 0 && sum >= bestSum {
				break
			}
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = ft, sum
		}
	}
	return best, scratch[best]
}
