package output

import (
	"fmt"
	"math"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/servos"
)

// Mapper converts normalized positions into device values.
type Mapper struct {
	max float64
}

func NewMapper(maxOutput float64) (*Mapper, error) {
	if !(maxOutput > 0) {
		return nil, fmt.Errorf("max output must be positive, got %v", maxOutput)
	}

	return &Mapper{max: maxOutput}, nil
}

// Map returns the position scaled to the device range, rounded to the nearest
// integer (halves away from zero). Nothing is clamped here.
func (m *Mapper) Map(position float64) int {
	return int(math.Round(position * m.max))
}

// Frame returns one device value per servo, in layout order. Servos with no
// position are sent zero.
func (m *Mapper) Frame(positions ybot.Positions, layout *servos.Layout) []int {
	ids := layout.IDs()
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = m.Map(positions[id])
	}
	return out
}

// Max returns the device value which a position of 1.0 maps to.
func (m *Mapper) Max() float64 {
	return m.max
}
