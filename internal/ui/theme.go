package ui

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme defines UI color tokens used across widgets and text tags.
type Theme struct {
	// Widget colors
	Bg          tcell.Color
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color
	Accent      tcell.Color
	Error       tcell.Color

	// Text tag colors (for tview dynamic color markup)
	TagTextPrimary string
	TagMuted       string
	TagAccent      string
	TagHeader      string
	TagSuccess     string
	TagWarning     string
	TagError       string

	// Chart series, cycled when a data key carries no color of its own
	Series []string
}

// helpers
func hex(s string) tcell.Color { return tcell.GetColor(s) }

var themeOrder = []string{"neon", "dark", "light", "high-contrast"}

func themeByName(name string) (Theme, bool) {
	switch name {
	case "dark":
		return themeDark(), true
	case "light":
		return themeLight(), true
	case "neon":
		return themeNeon(), true
	case "high-contrast":
		return themeHighContrast(), true
	}
	return Theme{}, false
}

func nextThemeName(current string) string {
	for i, n := range themeOrder {
		if n == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

func themeDark() Theme {
	return Theme{
		Bg:          hex("#0e1116"),
		Surface:     hex("#12161e"),
		Border:      hex("#2b3240"),
		FocusBorder: hex("#4aa8ff"),
		SelectionBg: hex("#2b3240"),
		SelectionFg: hex("#cfd8e3"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8a939f"),
		Accent:      hex("#2dd4bf"),
		Error:       hex("#ef4444"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8a939f",
		TagAccent:      "#2dd4bf",
		TagHeader:      "#eab308",
		TagSuccess:     "#22c55e",
		TagWarning:     "#f59e0b",
		TagError:       "#ef4444",

		Series: []string{"#4aa8ff", "#2dd4bf", "#eab308", "#f472b6", "#a78bfa"},
	}
}

func themeLight() Theme {
	return Theme{
		Bg:          hex("#f6f8fa"),
		Surface:     hex("#ffffff"),
		Border:      hex("#d0d7de"),
		FocusBorder: hex("#1f6feb"),
		SelectionBg: hex("#e2e8f0"),
		SelectionFg: hex("#111827"),
		TextPrimary: hex("#111827"),
		TextMuted:   hex("#57606a"),
		Accent:      hex("#0969da"),
		Error:       hex("#cf222e"),

		TagTextPrimary: "#111827",
		TagMuted:       "#57606a",
		TagAccent:      "#0969da",
		TagHeader:      "#9a6700",
		TagSuccess:     "#1a7f37",
		TagWarning:     "#9a6700",
		TagError:       "#cf222e",

		Series: []string{"#0969da", "#1a7f37", "#9a6700", "#bf3989", "#8250df"},
	}
}

func themeHighContrast() Theme {
	return Theme{
		Bg:          tcell.ColorBlack,
		Surface:     tcell.ColorBlack,
		Border:      tcell.ColorWhite,
		FocusBorder: tcell.ColorYellow,
		SelectionBg: tcell.ColorYellow,
		SelectionFg: tcell.ColorBlack,
		TextPrimary: tcell.ColorWhite,
		TextMuted:   tcell.ColorSilver,
		Accent:      tcell.ColorAqua,
		Error:       tcell.ColorRed,

		TagTextPrimary: "white",
		TagMuted:       "silver",
		TagAccent:      "aqua",
		TagHeader:      "yellow",
		TagSuccess:     "lime",
		TagWarning:     "yellow",
		TagError:       "red",

		Series: []string{"aqua", "lime", "yellow", "fuchsia", "white"},
	}
}

func themeNeon() Theme {
	return Theme{
		Bg:          hex("#0f0b14"),
		Surface:     hex("#14111a"),
		Border:      hex("#45385a"),
		FocusBorder: hex("#ff79c6"), // pink focus ring
		SelectionBg: hex("#2a1f3d"),
		SelectionFg: hex("#f8f5ff"),
		TextPrimary: hex("#f8f5ff"),
		TextMuted:   hex("#b8a8c9"),
		Accent:      hex("#ff6ac1"),
		Error:       hex("#ff5555"),

		TagTextPrimary: "#f8f5ff",
		TagMuted:       "#b8a8c9",
		TagAccent:      "#ff6ac1",
		TagHeader:      "#ff79c6",
		TagSuccess:     "#00d084",
		TagWarning:     "#ffd166",
		TagError:       "#ff5555",

		Series: []string{"#0a84ff", "#34c759", "#ffd60a", "#ff9f0a", "#ff3b30"},
	}
}

func detectTrueColor() bool {
	// Best-effort detection without initializing screen
	ct := strings.ToLower(os.Getenv("COLORTERM"))
	if strings.Contains(ct, "truecolor") || strings.Contains(ct, "24bit") {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "256color")
}
