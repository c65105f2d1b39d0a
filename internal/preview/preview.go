// Package preview post-processes generated markup and renders it as a
// standalone, sandboxed page.
package preview

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ziadkadry99/draw2ui/internal/state"
)

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("invalid preview settings")

// Colors are the accent palettes the preview can switch to.
var Colors = []string{"zinc", "red", "orange", "green", "blue", "indigo", "violet"}

// Fonts are the font utility classes the preview can switch to.
var Fonts = []string{"font-sans", "font-inter", "font-roboto", "font-open-sans", "font-lato", "font-poppins"}

const (
	defaultColor = "zinc"
	defaultFont  = "font-sans"
)

var (
	paletteClass = regexp.MustCompile(`(indigo|zinc)-`)
	fontClass    = regexp.MustCompile(`font-sans`)
)

// Validate rejects settings outside the known catalogues.
func Validate(s state.PreviewSettings) error {
	if !contains(Colors, s.ThemeColor) {
		return fmt.Errorf("%w: unknown theme color %q", ErrInvalidSettings, s.ThemeColor)
	}
	if !contains(Fonts, s.Font) {
		return fmt.Errorf("%w: unknown font %q", ErrInvalidSettings, s.Font)
	}
	if !s.Device.Valid() {
		return fmt.Errorf("%w: unknown device %q", ErrInvalidSettings, s.Device)
	}
	if s.Scale < state.MinScale || s.Scale > state.MaxScale {
		return fmt.Errorf("%w: scale %.2f outside [%.2f, %.2f]", ErrInvalidSettings, s.Scale, state.MinScale, state.MaxScale)
	}
	return nil
}

// ValidatePatch checks only the fields a patch sets.
func ValidatePatch(p state.PreviewPatch) error {
	if p.ThemeColor != nil && !contains(Colors, *p.ThemeColor) {
		return fmt.Errorf("%w: unknown theme color %q", ErrInvalidSettings, *p.ThemeColor)
	}
	if p.Font != nil && !contains(Fonts, *p.Font) {
		return fmt.Errorf("%w: unknown font %q", ErrInvalidSettings, *p.Font)
	}
	if p.Device != nil && !p.Device.Valid() {
		return fmt.Errorf("%w: unknown device %q", ErrInvalidSettings, *p.Device)
	}
	return nil
}

// Process rewrites accent colour and font utility classes. The default zinc
// palette and font-sans leave the markup untouched; otherwise every indigo-
// and zinc- prefix becomes the chosen colour and font-sans the chosen font.
func Process(html string, s state.PreviewSettings) string {
	if html == "" {
		return ""
	}
	if s.ThemeColor != "" && s.ThemeColor != defaultColor {
		html = paletteClass.ReplaceAllLiteralString(html, s.ThemeColor+"-")
	}
	if s.Font != "" && s.Font != defaultFont {
		html = fontClass.ReplaceAllLiteralString(html, s.Font)
	}
	return html
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// fontFamily maps a font class to its CSS family name.
func fontFamily(class string) string {
	name := strings.TrimPrefix(class, "font-")
	words := strings.Split(name, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
