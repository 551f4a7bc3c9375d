package render

// ModuleDrawerInfo describes a module drawer for catalogs.
type ModuleDrawerInfo struct {
	Name                ModuleDrawerType `json:"name"`
	Description         string           `json:"description"`
	SupportsSizeRatio   bool             `json:"supports_size_ratio"`
	SupportsRadiusRatio bool             `json:"supports_radius_ratio"`
}

// EyeDrawerInfo describes an eye drawer for catalogs.
type EyeDrawerInfo struct {
	Name                EyeDrawerType `json:"name"`
	Description         string        `json:"description"`
	SupportsRadiusRatio bool          `json:"supports_radius_ratio"`
}

// ColorMaskInfo describes a colour mask and the colours it reads.
type ColorMaskInfo struct {
	Name        ColorMaskType `json:"name"`
	Description string        `json:"description"`
	Parameters  []string      `json:"parameters"`
}

// ModuleDrawerCatalog lists the module drawers in a stable order.
func ModuleDrawerCatalog() []ModuleDrawerInfo {
	return []ModuleDrawerInfo{
		{ModuleSquare, "Plain square modules", false, false},
		{ModuleGappedSquare, "Squares shrunk by size_ratio, leaving gaps", true, false},
		{ModuleCircle, "Circular modules scaled by size_ratio", true, false},
		{ModuleRounded, "Squares whose free corners are rounded by radius_ratio", false, true},
		{ModuleVerticalBars, "Vertical neighbours joined into rounded bars", false, false},
		{ModuleHorizontalBars, "Horizontal neighbours joined into rounded bars", false, false},
	}
}

// EyeDrawerCatalog lists the eye drawers in a stable order.
func EyeDrawerCatalog() []EyeDrawerInfo {
	return []EyeDrawerInfo{
		{EyeSquare, "Square finder patterns", false},
		{EyeRounded, "Finder patterns with corners rounded by radius_ratio", true},
		{EyeCircle, "Concentric circle finder patterns", false},
	}
}

// ColorMaskCatalog lists the colour masks in a stable order.
func ColorMaskCatalog() []ColorMaskInfo {
	return []ColorMaskInfo{
		{MaskSolid, "Single foreground colour", []string{"back_color", "front_color"}},
		{MaskRadialGradient, "Gradient from the centre outwards", []string{"back_color", "center_color", "edge_color"}},
		{MaskSquareGradient, "Square gradient from the centre outwards", []string{"back_color", "center_color", "edge_color"}},
		{MaskHorizontalGradient, "Gradient from left to right", []string{"back_color", "left_color", "right_color"}},
		{MaskVerticalGradient, "Gradient from top to bottom", []string{"back_color", "top_color", "bottom_color"}},
		{MaskImage, "Foreground colours sampled from an image", []string{"back_color", "color_mask_image"}},
	}
}
