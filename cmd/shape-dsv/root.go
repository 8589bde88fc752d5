package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shapestone/shape-dsv/pkg/dsv"
)

const envPrefix = "SHAPE_DSV"

var (
	cfgFile string
	verbose bool

	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
)

var rootCmd = &cobra.Command{
	Use:   "shape-dsv [file]",
	Short: "Parse delimited text (CSV, TSV and friends) to JSON.",
	Long: `shape-dsv parses delimited text in dialects that may be partially
unknown: the delimiter and line ending are guessed when not given, quoting
follows RFC 4180 with configurable characters, and malformed input is
reported row by row instead of failing the run.

Reads from the given file, or stdin when no file is named. Gzip and UTF-16
input are decoded transparently. Output is JSON on stdout.`,
	Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		logger := newLogger(cmd.ErrOrStderr())

		cfg, err := buildConfig(v)
		if err != nil {
			return err
		}
		logger.Debug("configuration resolved",
			slog.String("delimiter", cfg.Delimiter),
			slog.Bool("header", cfg.Header),
			slog.Int("preview", cfg.Preview))

		in, size, closeIn, err := openInput(args)
		if err != nil {
			return err
		}
		defer closeIn()

		if v.GetBool("progress") && size > 0 {
			bar := progressbar.DefaultBytes(size, "parsing")
			in = io.TeeReader(in, bar)
		}

		res, err := dsv.ParseReader(in, cfg)
		if err != nil {
			return err
		}
		logger.Debug("parse finished",
			slog.Int("rows", res.Len()),
			slog.Int("errors", len(res.Errors)))

		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		printSummary(cmd.ErrOrStderr(), res)
		return nil
	},
}

// Execute runs the root command. Cobra prints the error; we only set the
// exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .shape-dsv.yaml in . or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.Flags().StringP("delimiter", "d", "", `field delimiter ("\t" for tab); empty means guess`)
	rootCmd.Flags().String("newline", "", `line terminator ("\n", "\r" or "\r\n"); empty means guess`)
	rootCmd.Flags().String("quote", `"`, "quote character")
	rootCmd.Flags().String("escape", "", "escape character (default: the quote character)")
	rootCmd.Flags().String("comment", "", "drop rows starting with this marker")
	rootCmd.Flags().Bool("header", false, "treat the first row as field names")
	rootCmd.Flags().Bool("dynamic-typing", false, "convert numbers, booleans and dates")
	rootCmd.Flags().IntP("preview", "n", 0, "stop after this many data rows")
	rootCmd.Flags().String("skip-empty-lines", "none", `empty-line handling: "none", "skip" or "greedy"`)
	rootCmd.Flags().String("fast-mode", "auto", `quote-bypass scanning: "auto", "on" or "off"`)
	rootCmd.Flags().Bool("progress", false, "show a progress bar for file input")

	rootCmd.AddCommand(detectCmd)
}

// loadConfig layers configuration: defaults, optional config file,
// SHAPE_DSV_* environment variables, then flags.
func loadConfig(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".shape-dsv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// buildConfig translates resolved settings into a parse configuration.
func buildConfig(v *viper.Viper) (dsv.Config, error) {
	cfg := dsv.Config{
		Delimiter: unescape(v.GetString("delimiter")),
		Newline:   unescape(v.GetString("newline")),
		Comment:   v.GetString("comment"),
		Header:    v.GetBool("header"),
		Preview:   v.GetInt("preview"),
	}
	if q := v.GetString("quote"); q != "" {
		cfg.QuoteChar = []rune(q)[0]
	}
	if e := v.GetString("escape"); e != "" {
		cfg.EscapeChar = []rune(e)[0]
	}
	if v.GetBool("dynamic-typing") {
		cfg.DynamicTyping = dsv.Typing{All: true}
	}
	switch mode := v.GetString("skip-empty-lines"); mode {
	case "", "none":
		cfg.SkipEmptyLines = dsv.SkipNone
	case "skip":
		cfg.SkipEmptyLines = dsv.SkipEmpty
	case "greedy":
		cfg.SkipEmptyLines = dsv.SkipGreedy
	default:
		return cfg, fmt.Errorf("invalid skip-empty-lines mode %q", mode)
	}
	switch mode := v.GetString("fast-mode"); mode {
	case "", "auto":
		cfg.FastMode = dsv.FastModeAuto
	case "on":
		cfg.FastMode = dsv.FastModeOn
	case "off":
		cfg.FastMode = dsv.FastModeOff
	default:
		return cfg, fmt.Errorf("invalid fast-mode %q", mode)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// unescape turns the shell-friendly escapes "\t", "\n" and "\r" into their
// control characters.
func unescape(s string) string {
	r := strings.NewReplacer(`\t`, "\t", `\n`, "\n", `\r`, "\r")
	return r.Replace(s)
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openInput returns the input stream, its size when known (for the
// progress bar), and a close function.
func openInput(args []string) (io.Reader, int64, func(), error) {
	if len(args) == 0 {
		return os.Stdin, 0, func() {}, nil
	}
	path := filepath.Clean(args[0])
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, nil, err
	}
	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	return f, size, func() { f.Close() }, nil
}

// jsonOutput is the stdout document shape.
type jsonOutput struct {
	Data   any              `json:"data"`
	Errors []dsv.ParseError `json:"errors,omitempty"`
	Meta   jsonMeta         `json:"meta"`
}

type jsonMeta struct {
	Delimiter string   `json:"delimiter"`
	Newline   string   `json:"newline"`
	Fields    []string `json:"fields,omitempty"`
	Truncated bool     `json:"truncated"`
	Aborted   bool     `json:"aborted"`
}

func writeJSON(w io.Writer, res *dsv.Result) error {
	out := jsonOutput{
		Errors: res.Errors,
		Meta: jsonMeta{
			Delimiter: res.Meta.Delimiter,
			Newline:   res.Meta.Newline,
			Fields:    res.Meta.Fields,
			Truncated: res.Meta.Truncated,
			Aborted:   res.Meta.Aborted,
		},
	}
	if res.Records != nil {
		out.Data = res.Records
	} else {
		out.Data = res.Rows
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// printSummary writes a one-glance run summary to stderr.
func printSummary(w io.Writer, res *dsv.Result) {
	const maxShown = 5
	if len(res.Errors) == 0 {
		fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("parsed %d rows", res.Len())))
		return
	}
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("parsed %d rows, %d errors", res.Len(), len(res.Errors))))
	for i, e := range res.Errors {
		if i == maxShown {
			fmt.Fprintln(w, subtleStyle.Render(fmt.Sprintf("  ... and %d more", len(res.Errors)-maxShown)))
			break
		}
		fmt.Fprintln(w, errorStyle.Render("  "+e.Error()))
	}
}
