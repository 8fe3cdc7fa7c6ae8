package tui

import "github.com/charmbracelet/lipgloss"

// bannerStyle uses the same adaptive color scheme as the header.
var bannerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.AdaptiveColor{Light: "#0B5CAD", Dark: "#4FA3F7"}).
	Bold(true)

// Banner is shown above the wizard while no snapshot has arrived yet.
const Banner = `    _   _  __ ___   __  __ _                 _
   /_\ | |/ // __| |  \/  (_)__ _ _ _ __ _| |_ ___
  / _ \| ' < \__ \ | |\/| | / _' | '_/ _' |  _/ -_)
 /_/ \_\_|\_\|___/ |_|  |_|_\__, |_| \__,_|\__\___|
                            |___/`

// RenderBanner returns the styled banner.
func RenderBanner() string {
	return bannerStyle.Render(Banner)
}
