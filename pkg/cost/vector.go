package cost

import (
	"fmt"
	"math"
	"math/bits"
)

// ProportionResolution is the scale used when folding a vector into a scalar
// against a limit.
const ProportionResolution uint64 = 10_000

// BlockLimit is the default limit used to turn a vector into a single
// comparable scalar.
var BlockLimit = Vector{
	Runtime:     5_000_000_000,
	WriteLength: 15_000_000,
	WriteCount:  7_750,
	ReadLength:  100_000_000,
	ReadCount:   7_750,
}

// Vector holds one value per cost dimension.
type Vector struct {
	Runtime     uint64 `json:"runtime"`
	WriteLength uint64 `json:"write_length"`
	WriteCount  uint64 `json:"write_count"`
	ReadLength  uint64 `json:"read_length"`
	ReadCount   uint64 `json:"read_count"`
}

func (v Vector) Get(d Dimension) uint64 {
	switch d {
	case Runtime:
		return v.Runtime
	case WriteLength:
		return v.WriteLength
	case WriteCount:
		return v.WriteCount
	case ReadLength:
		return v.ReadLength
	case ReadCount:
		return v.ReadCount
	default:
		panic(fmt.Sprintf("cost: unknown dimension %d", int(d)))
	}
}

func (v *Vector) Set(d Dimension, value uint64) {
	switch d {
	case Runtime:
		v.Runtime = value
	case WriteLength:
		v.WriteLength = value
	case WriteCount:
		v.WriteCount = value
	case ReadLength:
		v.ReadLength = value
	case ReadCount:
		v.ReadCount = value
	default:
		panic(fmt.Sprintf("cost: unknown dimension %d", int(d)))
	}
}

// ProportionDotProduct sums, over every dimension, the share of limit that v
// consumes scaled by resolution. Arithmetic saturates at math.MaxUint64.
func (v Vector) ProportionDotProduct(limit Vector, resolution uint64) uint64 {
	var total uint64
	for _, d := range dimensions {
		share := saturatingMul(resolution, v.Get(d)) / max(1, limit.Get(d))
		total = saturatingAdd(total, share)
	}
	return total
}

func (v Vector) String() string {
	return fmt.Sprintf("runtime=%d write-length=%d write-count=%d read-length=%d read-count=%d",
		v.Runtime, v.WriteLength, v.WriteCount, v.ReadLength, v.ReadCount)
}

func saturatingMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
