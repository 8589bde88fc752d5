package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shapestone/shape-dsv/pkg/dsv"
)

// detectSampleSize bounds how much input the dialect guess reads.
const detectSampleSize = 64 * 1024

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

var detectCmd = &cobra.Command{
	Use:   "detect [file]",
	Short: "Guess the dialect of a delimited-text file.",
	Long: `detect samples the input and reports the guessed field delimiter,
line-ending convention, and whether the first row looks like a header.
Reads from the given file, or stdin when no file is named.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _, closeIn, err := openInput(args)
		if err != nil {
			return err
		}
		defer closeIn()

		decoded, err := dsv.DecodeReader(in)
		if err != nil {
			return err
		}
		sample := make([]byte, detectSampleSize)
		n, err := io.ReadFull(decoded, sample)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}

		sniffer := dsv.NewSniffer(string(sample[:n]))
		delim, ok := sniffer.DetectDelimiter()
		if !ok {
			delim = ","
		}
		report(cmd.OutOrStdout(), "delimiter", printableName(delim), !ok)
		report(cmd.OutOrStdout(), "newline", printableName(sniffer.DetectNewline()), false)
		report(cmd.OutOrStdout(), "header", fmt.Sprintf("%v", sniffer.HasHeader()), false)
		return nil
	},
}

func report(w io.Writer, label, value string, fallback bool) {
	line := fmt.Sprintf("%s %s", labelStyle.Render(label+":"), value)
	if fallback {
		line += " " + subtleStyle.Render("(not detected, defaulted)")
	}
	fmt.Fprintln(w, line)
}

// printableName names whitespace and control delimiters for display.
func printableName(s string) string {
	switch s {
	case "\t":
		return "tab"
	case "\n":
		return `\n`
	case "\r":
		return `\r`
	case "\r\n":
		return `\r\n`
	case "\x1e":
		return "record-separator (0x1e)"
	case "\x1f":
		return "unit-separator (0x1f)"
	default:
		return fmt.Sprintf("%q", s)
	}
}
