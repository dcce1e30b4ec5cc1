package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("62")  // Purple
	colorMuted   = lipgloss.Color("240") // Darker gray
	colorAccept  = lipgloss.Color("78")  // Green
	colorReject  = lipgloss.Color("203") // Red
	colorBadge   = lipgloss.Color("212") // Pink
)

// cardStyle frames the book on top of the deck.
var cardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2).
	Width(cardWidth)

var titleStyle = lipgloss.NewStyle().Bold(true)

var authorStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("250"))

var mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

var reasonStyle = lipgloss.NewStyle().Foreground(colorAccept)

var badgeStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorBadge).
	Padding(0, 1)

var hintKey = lipgloss.NewStyle().Foreground(colorBadge).Bold(true)

var stampAccept = lipgloss.NewStyle().Bold(true).Foreground(colorAccept)

var stampReject = lipgloss.NewStyle().Bold(true).Foreground(colorReject)

var errorStyle = lipgloss.NewStyle().Foreground(colorReject)
