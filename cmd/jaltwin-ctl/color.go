package main

import "regexp"

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var ansiRegex = regexp.MustCompile(`\033\[[0-9;]*m`)

// stripANSI removes all ANSI escape sequences from a string.
func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

func paint(color, s string) string {
	if color == "" {
		return s
	}
	return color + s + colorReset
}
