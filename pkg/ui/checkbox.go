package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Checkbox is a simple UI widget for boolean values, e.g. display toggles of the viewer
type Checkbox struct {
	Label    string
	Value    bool
	X, Y     float64
	Size     float64
	OnChange func(bool) // optional, called after each toggle

	clicked bool // Track if already clicked this frame
}

// NewCheckbox creates a new checkbox instance
func NewCheckbox(x, y float64, label string, value bool) *Checkbox {
	return &Checkbox{
		Label: label,
		Value: value,
		X:     x,
		Y:     y,
		Size:  16, // Default size
	}
}

// Update toggles the value on a fresh click inside the box
func (c *Checkbox) Update() {
	mx, my := ebiten.CursorPosition()
	c.press(within(c.X, c.Y, c.Size, c.Size, mx, my) && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft))
}

// press handles one frame of input, pressed is true while the button is held over the box
func (c *Checkbox) press(pressed bool) {
	if !pressed {
		c.clicked = false
		return
	}
	if c.clicked {
		return
	}
	c.clicked = true
	c.Toggle()
}

// Toggle flips the value
func (c *Checkbox) Toggle() {
	c.Value = !c.Value
	if c.OnChange != nil {
		c.OnChange(c.Value)
	}
}

// Draw renders the checkbox
func (c *Checkbox) Draw(screen *ebiten.Image) {
	// Draw box border
	vector.StrokeRect(screen,
		float32(c.X), float32(c.Y),
		float32(c.Size), float32(c.Size),
		2,
		color.RGBA{R: 200, G: 200, B: 200, A: 255},
		true)

	// Fill if checked
	if c.Value {
		vector.FillRect(screen,
			float32(c.X+2), float32(c.Y+2),
			float32(c.Size-4), float32(c.Size-4),
			color.RGBA{R: 100, G: 200, B: 100, A: 255},
			true)
	}
}

func (c *Checkbox) rowHeight() float64  { return labelHeight + c.Size + 5 }
func (c *Checkbox) moveTo(x, y float64) { c.X, c.Y = x, y }
