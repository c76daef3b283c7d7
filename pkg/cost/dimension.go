package cost

import "fmt"

// Dimension is one independent scalar axis of resource consumption.
type Dimension int

const (
	Runtime Dimension = iota
	WriteLength
	WriteCount
	ReadLength
	ReadCount
)

var dimensions = []Dimension{
	Runtime,
	WriteLength,
	WriteCount,
	ReadLength,
	ReadCount,
}

// Dimensions returns every dimension in a fixed order.
func Dimensions() []Dimension {
	out := make([]Dimension, len(dimensions))
	copy(out, dimensions)
	return out
}

// String returns the stable name of the dimension. The names are part of the
// persisted estimate keys and must not change.
func (d Dimension) String() string {
	switch d {
	case Runtime:
		return "runtime"
	case WriteLength:
		return "write-length"
	case WriteCount:
		return "write-count"
	case ReadLength:
		return "read-length"
	case ReadCount:
		return "read-count"
	default:
		return fmt.Sprintf("dimension(%d)", int(d))
	}
}

func ParseDimension(name string) (Dimension, error) {
	for _, d := range dimensions {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown cost dimension %q", name)
}
