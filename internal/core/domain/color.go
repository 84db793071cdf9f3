package domain

import (
	"fmt"
	"hash/fnv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// DefaultAlpha is the hex alpha suffix used when painting code colors over text.
const DefaultAlpha = "50"

const (
	emptyColor   = "grey"
	unknownColor = "#ffffff" + DefaultAlpha
)

// StandardizeColor converts a CSS color name or #rgb / #rrggbb / #rrggbbaa
// value to #rrggbb followed by the given hex alpha.
// Unrecognized input is returned unchanged.
func StandardizeColor(color, alpha string) string {
	c := strings.ToLower(strings.TrimSpace(color))

	if strings.HasPrefix(c, "#") {
		hex := c[1:]
		switch len(hex) {
		case 3:
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		case 6:
		case 8:
			hex = hex[:6]
		default:
			return color
		}
		if _, err := colorful.Hex("#" + hex); err != nil {
			return color
		}
		return "#" + hex + alpha
	}

	named, ok := colornames.Map[c]
	if !ok {
		return color
	}
	return fmt.Sprintf("#%02x%02x%02x%s", named.R, named.G, named.B, alpha)
}

// RandomColor returns a light color derived from seed.
// The same seed always gives the same color.
func RandomColor(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum32()

	hue := float64(sum % 360)
	saturation := 0.55 + float64((sum>>9)%30)/100
	lightness := 0.70 + float64((sum>>17)%15)/100
	return colorful.Hsl(hue, saturation, lightness).Clamped().Hex()
}

// GetColor returns the display color for a code value.
// Folded codes take the color of the ancestor they fold into.
func GetColor(value string, codeMap CodeMap) string {
	if value == EmptyValue {
		return StandardizeColor(emptyColor, DefaultAlpha)
	}
	code, ok := codeMap[value]
	if !ok {
		return unknownColor
	}
	color := code.Color
	if code.FoldToParent != "" {
		if parent, ok := codeMap[code.FoldToParent]; ok {
			color = parent.Color
		}
	}
	return StandardizeColor(color, DefaultAlpha)
}

// GetColorGradient blends colors into a CSS background.
// Stops are distributed evenly from bottom to top.
func GetColorGradient(colors []string) string {
	switch len(colors) {
	case 0:
		return "white"
	case 1:
		return colors[0]
	}

	pct := 100 / len(colors)
	stops := make([]string, 0, 2*len(colors))
	for i, color := range colors {
		end := (i + 1) * pct
		if i == len(colors)-1 {
			end = 100
		}
		stops = append(stops, fmt.Sprintf("%s %d%%", color, i*pct), fmt.Sprintf("%s %d%%", color, end))
	}
	return "linear-gradient(to top, " + strings.Join(stops, ", ") + ")"
}

// TokenColor blends the colors of all annotations at one token.
// Annotations of unknown variables fall back to the unknown color.
func TokenColor(anns []IndexedAnnotation, variables VariableMap) string {
	colors := make([]string, 0, len(anns))
	for _, ann := range anns {
		colors = append(colors, GetColor(ann.Value, variables[ann.Variable].CodeMap))
	}
	return GetColorGradient(colors)
}

// ColorAnnotations sets the display color of exported annotations
func ColorAnnotations(anns []DisplayAnnotation, variables VariableMap) {
	for i := range anns {
		anns[i].Color = GetColor(anns[i].Value, variables[anns[i].Variable].CodeMap)
	}
}
