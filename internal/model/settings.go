package model

import (
	"fmt"

	"github.com/and161185/timekeeper/internal/errs"
)

// SettingKey names a known setting. Unknown keys are carried as plain strings.
type SettingKey string

const (
	KeyThemeMode    SettingKey = "themeMode"
	KeyColorPalette SettingKey = "colorPalette"
)

// ThemeMode is the light/dark preference.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// UIPalette is the accent palette of the interface (distinct from project colors).
type UIPalette string

const (
	PaletteBlue   UIPalette = "blue"
	PalettePurple UIPalette = "purple"
	PaletteGreen  UIPalette = "green"
	PaletteOrange UIPalette = "orange"
	PalettePink   UIPalette = "pink"
)

// DefaultSettings are seeded by the server and used when nothing is stored.
var DefaultSettings = Settings{
	KeyThemeMode:    string(ThemeLight),
	KeyColorPalette: string(PaletteBlue),
}

// Settings is the key/value settings map with typed accessors.
type Settings map[SettingKey]string

// Get returns the raw value, falling back to defaults for known keys.
func (s Settings) Get(key SettingKey) string {
	if v, ok := s[key]; ok {
		return v
	}
	return DefaultSettings[key]
}

// ThemeMode returns the typed theme, defaulting on unknown values.
func (s Settings) ThemeMode() ThemeMode {
	switch m := ThemeMode(s.Get(KeyThemeMode)); m {
	case ThemeLight, ThemeDark:
		return m
	}
	return ThemeLight
}

// ColorPalette returns the typed palette, defaulting on unknown values.
func (s Settings) ColorPalette() UIPalette {
	switch p := UIPalette(s.Get(KeyColorPalette)); p {
	case PaletteBlue, PalettePurple, PaletteGreen, PaletteOrange, PalettePink:
		return p
	}
	return PaletteBlue
}

// ValidateSetting checks typed keys; unknown keys pass through.
func ValidateSetting(key SettingKey, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty setting key", errs.ErrValidation)
	}
	switch key {
	case KeyThemeMode:
		if m := ThemeMode(value); m != ThemeLight && m != ThemeDark {
			return fmt.Errorf("%w: bad theme mode %q", errs.ErrValidation, value)
		}
	case KeyColorPalette:
		switch UIPalette(value) {
		case PaletteBlue, PalettePurple, PaletteGreen, PaletteOrange, PalettePink:
		default:
			return fmt.Errorf("%w: bad color palette %q", errs.ErrValidation, value)
		}
	}
	return nil
}
