package output

import "io"

// Print writes data in format. Table output uses the prepared table;
// JSON and YAML encode data itself.
func Print(w io.Writer, format Format, data any, table Data) error {
	if format == FormatJSON || format == FormatYAML {
		return NewFormatter(format).Format(w, data)
	}
	return NewFormatter(FormatTable).Format(w, table)
}
