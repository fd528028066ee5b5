package db

import "encoding/binary"

// Rank scores one row from an FTS4 matchinfo blob in 'pcx' format.
//
// The blob is a sequence of native-endian uint32: phrase count, column count, then
// for every phrase/column pair three values (hits in this row, hits in all rows,
// rows with hits). Each pair contributes hitsThisRow/hitsAllRows with weight 1.
// Larger scores are more relevant.
func Rank(matchinfo []byte) float64 {
	if len(matchinfo) < 8 {
		return 0
	}

	values := make([]uint32, len(matchinfo)/4)
	for i := range values {
		values[i] = binary.NativeEndian.Uint32(matchinfo[i*4:])
	}

	phrases, columns := int(values[0]), int(values[1])
	score := 0.0
	for p := 0; p < phrases; p++ {
		base := 2 + p*columns*3
		for c := 0; c < columns; c++ {
			idx := base + c*3
			if idx+1 >= len(values) {
				return score
			}
			rowHits, allHits := values[idx], values[idx+1]
			if rowHits > 0 && allHits > 0 {
				score += float64(rowHits) / float64(allHits)
			}
		}
	}
	return score
}
