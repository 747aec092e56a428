package properties

// Color is one of the fixed palette tokens shared by label options and
// discussion categories.
type Color string

const (
	ColorGray   Color = "gray"
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorTeal   Color = "teal"
	ColorBlue   Color = "blue"
	ColorCyan   Color = "cyan"
	ColorPurple Color = "purple"
	ColorPink   Color = "pink"
)

// Colors lists the palette in display order.
var Colors = []Color{
	ColorGray, ColorRed, ColorOrange, ColorYellow, ColorGreen,
	ColorTeal, ColorBlue, ColorCyan, ColorPurple, ColorPink,
}

// Valid reports whether c is a palette token.
func (c Color) Valid() bool {
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}
