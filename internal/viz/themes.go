package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours the particles (Primary) and the header (Secondary).
type Theme struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
}

var (
	ThemeOcean = Theme{Name: "ocean", Primary: "#3399ff", Secondary: "#00a8cc"}
	ThemeLava  = Theme{Name: "lava", Primary: "#ff5a1f", Secondary: "#ffc048"}
	ThemeSand  = Theme{Name: "sand", Primary: "#e8c07d", Secondary: "#b08850"}
	ThemeMud   = Theme{Name: "mud", Primary: "#8b6b4a", Secondary: "#c9a27a"}
	ThemeMono  = Theme{Name: "mono", Primary: "#ffffff", Secondary: "#aaaaaa"}

	CurrentTheme = ThemeOcean

	Themes = []Theme{ThemeOcean, ThemeLava, ThemeSand, ThemeMud, ThemeMono}
)

// GetTheme returns the named theme, or ocean for an unknown name.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeOcean
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	for i, t := range Themes {
		if t.Name == CurrentTheme.Name {
			CurrentTheme = Themes[(i+1)%len(Themes)]
			return
		}
	}
	CurrentTheme = ThemeOcean
}
