package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/bits"
)

// SampleWindowCapacity is the number of highest observations kept per key.
const SampleWindowCapacity = 10

// SampleWindow keeps the highest observations seen for one estimate key.
// The order of the values is irrelevant.
type SampleWindow struct {
	items []uint64
}

func NewSampleWindow(values ...uint64) *SampleWindow {
	w := &SampleWindow{items: make([]uint64, 0, SampleWindowCapacity)}
	for _, v := range values {
		w.Update(v)
	}
	return w
}

// Update offers sample to the window and reports whether it was kept. A full
// window only accepts a sample strictly larger than its current minimum,
// which it replaces.
func (w *SampleWindow) Update(sample uint64) bool {
	if len(w.items) < SampleWindowCapacity {
		w.items = append(w.items, sample)
		return true
	}

	minIdx := 0
	for i, v := range w.items {
		if v < w.items[minIdx] {
			minIdx = i
		}
	}

	if sample > w.items[minIdx] {
		w.items[minIdx] = sample
		return true
	}
	return false
}

// Mean returns the truncated mean of the window, 0 when empty. The sum is
// accumulated on 128 bits so it is exact for any content.
func (w *SampleWindow) Mean() uint64 {
	if len(w.items) == 0 {
		return 0
	}

	var hi, lo, carry uint64
	for _, v := range w.items {
		lo, carry = bits.Add64(lo, v, 0)
		hi += carry
	}

	// hi < len(items) since every value is below 2^64, so Div64 cannot panic.
	q, _ := bits.Div64(hi, lo, uint64(len(w.items)))
	return q
}

func (w *SampleWindow) Len() int {
	return len(w.items)
}

func (w *SampleWindow) Values() []uint64 {
	out := make([]uint64, len(w.items))
	copy(out, w.items)
	return out
}

func (w *SampleWindow) MarshalJSON() ([]byte, error) {
	if w.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(w.items)
}

func (w *SampleWindow) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("samples must be an array, got null")
	}

	var items []uint64
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if len(items) > SampleWindowCapacity {
		return fmt.Errorf("samples hold %d values, at most %d are allowed", len(items), SampleWindowCapacity)
	}

	w.items = make([]uint64, len(items), SampleWindowCapacity)
	copy(w.items, items)
	return nil
}

func (w *SampleWindow) String() string {
	return fmt.Sprintf("%v", w.items)
}
