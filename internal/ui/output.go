// Package ui provides colored terminal output helpers for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue, color.Bold)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Header prints a section header with a rule above and below.
func Header(text string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(text, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress step.
func Step(current, total int, text string) {
	stepColor.Printf("[%d/%d] %s\n", current, total, text)
}

// Success prints a success message.
func Success(text string) {
	successColor.Printf("✓ %s\n", text)
}

// Info prints an informational message.
func Info(text string) {
	infoColor.Printf("  %s\n", text)
}

// Warning prints a warning message.
func Warning(text string) {
	warnColor.Printf("⚠ %s\n", text)
}

// Error prints an error message.
func Error(text string) {
	errorColor.Printf("✗ %s\n", text)
}

// BlueText returns text colored blue.
func BlueText(text string) string {
	return color.BlueString(text)
}

// YellowText returns text colored yellow.
func YellowText(text string) string {
	return color.YellowString(text)
}

// center left-pads text to sit in the middle of width. Text wider than
// width is returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return fmt.Sprintf("%s%s", strings.Repeat(" ", pad), text)
}
