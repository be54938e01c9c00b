package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	json "github.com/json-iterator/go"
	"github.com/zfogg/sidechain/ranking/internal/cli/config"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// Writer is where all output goes; tests swap it
var Writer io.Writer = color.Output

// GetOutputFormat returns the configured output format
func GetOutputFormat() OutputFormat {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidateOutputFormat checks if format is valid
func ValidateOutputFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

// PrintList prints rows under headers. JSON output encodes raw instead.
// Text output is the table plus a footer line when footer is set.
func PrintList(raw interface{}, headers []string, rows [][]string, footer string) error {
	if GetOutputFormat() == FormatJSON {
		return printJSON(raw)
	}
	if len(rows) == 0 {
		PrintInfo("No results.")
	} else {
		printTable(headers, rows)
	}
	if footer != "" && GetOutputFormat() == FormatText {
		fmt.Fprintln(Writer, footer)
	}
	return nil
}

// PrintRecord prints ordered key/value pairs. JSON output encodes raw instead.
func PrintRecord(raw interface{}, fields [][2]string) error {
	if GetOutputFormat() == FormatJSON {
		return printJSON(raw)
	}
	if GetOutputFormat() == FormatTable {
		rows := make([][]string, 0, len(fields))
		for _, f := range fields {
			rows = append(rows, []string{f[0], f[1]})
		}
		printTable([]string{"Field", "Value"}, rows)
		return nil
	}
	bold := color.New(color.Bold)
	for _, f := range fields {
		bold.Fprint(Writer, f[0]+": ")
		fmt.Fprintln(Writer, f[1])
	}
	return nil
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(Writer, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(Writer, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(Writer, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(Writer, "Warning: "+msg+"\n", args...)
}

func printJSON(data interface{}) error {
	out, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(Writer, string(out))
	return err
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Writer, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)

	for i, h := range headers {
		bold.Fprint(w, h)
		if i < len(headers)-1 {
			fmt.Fprint(w, "\t")
		}
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for i, cell := range row {
			fmt.Fprint(w, cell)
			if i < len(row)-1 {
				fmt.Fprint(w, "\t")
			}
		}
		fmt.Fprintln(w)
	}

	w.Flush()
}
