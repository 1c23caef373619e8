package ui

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// widget is implemented by everything the panel can stack.
type widget interface {
	Update()
	Draw(screen *ebiten.Image)
	rowHeight() float64
	moveTo(x, y float64)
}

const (
	titleHeight  = 30.0
	headerHeight = 25.0
	labelHeight  = 15.0
)

// row is one line of the panel: a section header when w is nil, else a labelled widget.
type row struct {
	text string
	w    widget
	y    float64 // top of the row on screen, set by layout
}

func (r *row) height() float64 {
	if r.w == nil {
		return headerHeight
	}
	return r.w.rowHeight()
}

// UIPanel is the scrollable control surface of the flock viewer.
// Sliders added with AddSetting are bound to a flock setting name, so the viewer can
// forward every moved slider as one config update.
type UIPanel struct {
	Title         string
	X, Y          float64
	Width, Height float64
	ScrollOffset  float64

	BGColor     color.RGBA
	BorderColor color.RGBA
	HeaderColor color.RGBA

	rows     []row
	settings map[string]*Slider
	order    []string // setting names in insertion order
}

func NewUIPanel(x, y, width, height float64) *UIPanel {
	return &UIPanel{
		Title:       "Flock Settings",
		X:           x,
		Y:           y,
		Width:       width,
		Height:      height,
		BGColor:     color.RGBA{R: 40, G: 40, B: 45, A: 230},
		BorderColor: color.RGBA{R: 100, G: 100, B: 110, A: 255},
		HeaderColor: color.RGBA{R: 60, G: 60, B: 70, A: 255},
		settings:    make(map[string]*Slider),
	}
}

// AddSection starts a new group of widgets under a header.
func (p *UIPanel) AddSection(title string) {
	p.add(row{text: title})
}

// AddSetting adds a slider bound to the flock setting name.
// Adding the same name twice rebinds it to the new slider.
func (p *UIPanel) AddSetting(name, label string, min, max, value float64) *Slider {
	s := NewSlider(0, 0, p.Width-20, label, min, max, value)
	if _, ok := p.settings[name]; !ok {
		p.order = append(p.order, name)
	}
	p.settings[name] = s
	p.add(row{text: label, w: s})
	return s
}

// AddCheckbox adds a display toggle.
func (p *UIPanel) AddCheckbox(label string, value bool) *Checkbox {
	c := NewCheckbox(0, 0, label, value)
	p.add(row{text: label, w: c})
	return c
}

// AddButton adds a push button running onClick when pressed. The button shows its own caption.
func (p *UIPanel) AddButton(label string, onClick func()) *Button {
	b := NewButton(0, 0, p.Width-20, 20, label, onClick)
	p.add(row{w: b})
	return b
}

func (p *UIPanel) add(r row) {
	p.rows = append(p.rows, r)
	p.layout()
}

// Setting returns the slider bound to name, nil if there is none.
func (p *UIPanel) Setting(name string) *Slider { return p.settings[name] }

// SettingNames returns the bound setting names in the order they were added.
func (p *UIPanel) SettingNames() []string { return p.order }

// Changes returns the value of every bound slider moved since the previous call,
// keyed by setting name, or nil when nothing moved.
func (p *UIPanel) Changes() map[string]float64 {
	var values map[string]float64
	for _, name := range p.order {
		s := p.settings[name]
		if !s.Changed() {
			continue
		}
		if values == nil {
			values = make(map[string]float64)
		}
		values[name] = s.Value
	}
	return values
}

// layout places every row below the title, shifted by the scroll offset.
func (p *UIPanel) layout() {
	y := p.Y + titleHeight - p.ScrollOffset
	for i := range p.rows {
		r := &p.rows[i]
		r.y = y
		if r.w != nil {
			r.w.moveTo(p.X+10, y+labelHeight)
		}
		y += r.height()
	}
}

func (p *UIPanel) contentHeight() float64 {
	h := titleHeight
	for i := range p.rows {
		h += p.rows[i].height()
	}
	return h
}

// scroll moves the content by dy wheel steps, never past its first or last row.
func (p *UIPanel) scroll(dy float64) {
	maxScroll := math.Max(0, p.contentHeight()-p.Height+40)
	p.ScrollOffset = math.Min(math.Max(p.ScrollOffset-dy*20, 0), maxScroll)
	p.layout()
}

func (p *UIPanel) visible(r *row) bool {
	return r.y >= p.Y && r.y+r.height() <= p.Y+p.Height
}

// Update scrolls on mouse wheel and forwards input to the visible widgets.
func (p *UIPanel) Update() {
	if _, dy := ebiten.Wheel(); dy != 0 {
		p.scroll(dy)
	}
	for i := range p.rows {
		r := &p.rows[i]
		if r.w != nil && p.visible(r) {
			r.w.Update()
		}
	}
}

func (p *UIPanel) Draw(screen *ebiten.Image) {
	vector.FillRect(screen, float32(p.X), float32(p.Y), float32(p.Width), float32(p.Height), p.BGColor, true)
	vector.StrokeRect(screen, float32(p.X), float32(p.Y), float32(p.Width), float32(p.Height), 2, p.BorderColor, true)
	ebitenutil.DebugPrintAt(screen, p.Title, int(p.X+10), int(p.Y+5))

	for i := range p.rows {
		r := &p.rows[i]
		if !p.visible(r) {
			continue
		}
		if r.w == nil {
			vector.FillRect(screen, float32(p.X+5), float32(r.y), float32(p.Width-10), headerHeight-5, p.HeaderColor, true)
			ebitenutil.DebugPrintAt(screen, r.text, int(p.X+10), int(r.y+2))
			continue
		}
		if r.text != "" {
			ebitenutil.DebugPrintAt(screen, r.text, int(p.X+10), int(r.y))
		}
		r.w.Draw(screen)
	}
}
