// Package render paints QR symbols. Styling is a closed set of tagged
// variants (module drawer, eye drawer, colour mask); the renderer dispatches
// on the tag through lookup tables and never changes which modules are dark.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrUnsupportedStyle is returned for unknown drawer or mask tags and for
// parameters outside their valid range.
var ErrUnsupportedStyle = errors.New("unsupported style")

// StyleError names the offending style field.
type StyleError struct {
	Field string
	Value string
}

func (e *StyleError) Error() string {
	return fmt.Sprintf("%v: %s=%q", ErrUnsupportedStyle, e.Field, e.Value)
}

func (e *StyleError) Unwrap() error { return ErrUnsupportedStyle }

// ModuleDrawerType tags the shape used for ordinary modules.
type ModuleDrawerType string

const (
	ModuleSquare         ModuleDrawerType = "square"
	ModuleGappedSquare   ModuleDrawerType = "gapped_square"
	ModuleCircle         ModuleDrawerType = "circle"
	ModuleRounded        ModuleDrawerType = "rounded"
	ModuleVerticalBars   ModuleDrawerType = "vertical_bars"
	ModuleHorizontalBars ModuleDrawerType = "horizontal_bars"
)

// EyeDrawerType tags the shape used for the three finder patterns.
type EyeDrawerType string

const (
	EyeSquare  EyeDrawerType = "square"
	EyeRounded EyeDrawerType = "rounded"
	EyeCircle  EyeDrawerType = "circle"
)

// ColorMaskType tags the colouring applied to dark modules.
type ColorMaskType string

const (
	MaskSolid              ColorMaskType = "solid"
	MaskRadialGradient     ColorMaskType = "radial_gradient"
	MaskSquareGradient     ColorMaskType = "square_gradient"
	MaskHorizontalGradient ColorMaskType = "horizontal_gradient"
	MaskVerticalGradient   ColorMaskType = "vertical_gradient"
	MaskImage              ColorMaskType = "image"
)

// ModuleDrawer selects the module shape. SizeRatio applies to gapped_square
// and circle, RadiusRatio to rounded. Zero ratios take the defaults.
type ModuleDrawer struct {
	Type        ModuleDrawerType
	SizeRatio   float64
	RadiusRatio float64
}

// EyeDrawer selects the finder pattern shape. RadiusRatio applies to rounded.
type EyeDrawer struct {
	Type        EyeDrawerType
	RadiusRatio float64
}

// ColorMask selects how dark modules are coloured. Nil colours take the
// defaults: white background, black foreground, black gradient start and
// blue gradient end.
type ColorMask struct {
	Type        ColorMaskType
	BackColor   color.Color
	FrontColor  color.Color
	CenterColor color.Color
	EdgeColor   color.Color
	LeftColor   color.Color
	RightColor  color.Color
	TopColor    color.Color
	BottomColor color.Color
	Image       image.Image
}

// StyleSpec is the full cosmetic description of a rendered symbol.
type StyleSpec struct {
	Module ModuleDrawer
	Eye    EyeDrawer
	Mask   ColorMask
}

// DefaultStyle is plain black squares on white.
func DefaultStyle() StyleSpec {
	return StyleSpec{
		Module: ModuleDrawer{Type: ModuleSquare},
		Eye:    EyeDrawer{Type: EyeSquare},
		Mask:   ColorMask{Type: MaskSolid},
	}
}

// PlainStyle is square modules in the given colours.
func PlainStyle(front, back color.Color) StyleSpec {
	s := DefaultStyle()
	s.Mask.FrontColor = front
	s.Mask.BackColor = back
	return s
}

const (
	defaultGappedRatio = 0.8
	defaultCircleRatio = 1.0
	defaultRadiusRatio = 1.0
	barShrink          = 0.8
)

var (
	defaultBack     = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	defaultFront    = color.NRGBA{A: 255}
	defaultGradient = color.NRGBA{B: 255, A: 255}
)

// normalized fills empty tags and zero ratios with their defaults.
func (s StyleSpec) normalized() StyleSpec {
	if s.Module.Type == "" {
		s.Module.Type = ModuleSquare
	}
	if s.Module.SizeRatio == 0 {
		switch s.Module.Type {
		case ModuleGappedSquare:
			s.Module.SizeRatio = defaultGappedRatio
		default:
			s.Module.SizeRatio = defaultCircleRatio
		}
	}
	if s.Module.RadiusRatio == 0 {
		s.Module.RadiusRatio = defaultRadiusRatio
	}
	if s.Eye.Type == "" {
		s.Eye.Type = EyeSquare
	}
	if s.Eye.RadiusRatio == 0 {
		s.Eye.RadiusRatio = defaultRadiusRatio
	}
	if s.Mask.Type == "" {
		s.Mask.Type = MaskSolid
	}
	return s
}

// Validate checks tags and parameters. It runs before any pixel work.
func (s StyleSpec) Validate() error {
	n := s.normalized()
	if _, ok := moduleDrawers[n.Module.Type]; !ok {
		return &StyleError{Field: "module_drawer.type", Value: string(s.Module.Type)}
	}
	if _, ok := eyeDrawers[n.Eye.Type]; !ok {
		return &StyleError{Field: "eye_drawer.type", Value: string(s.Eye.Type)}
	}
	if _, ok := colorMasks[n.Mask.Type]; !ok {
		return &StyleError{Field: "color_mask.type", Value: string(s.Mask.Type)}
	}
	if n.Module.SizeRatio <= 0 || n.Module.SizeRatio > 1 {
		return &StyleError{Field: "module_drawer.size_ratio", Value: fmt.Sprint(s.Module.SizeRatio)}
	}
	if n.Module.RadiusRatio < 0 || n.Module.RadiusRatio > 1 {
		return &StyleError{Field: "module_drawer.radius_ratio", Value: fmt.Sprint(s.Module.RadiusRatio)}
	}
	if n.Eye.RadiusRatio < 0 || n.Eye.RadiusRatio > 1 {
		return &StyleError{Field: "eye_drawer.radius_ratio", Value: fmt.Sprint(s.Eye.RadiusRatio)}
	}
	if n.Mask.Type == MaskImage && n.Mask.Image == nil {
		return &StyleError{Field: "color_mask.image", Value: ""}
	}
	return nil
}

// Background returns the effective background colour.
func (s StyleSpec) Background() color.NRGBA {
	return toNRGBA(s.Mask.BackColor, defaultBack)
}

func toNRGBA(c color.Color, fallback color.NRGBA) color.NRGBA {
	if c == nil {
		return fallback
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}
