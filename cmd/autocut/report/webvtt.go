package report

import (
	"fmt"
	"html"
	"io"
)

type WebVTTOptions struct {
	OmitSource bool
}

func (t Timeline) WebVTT(w io.Writer, opts WebVTTOptions) error {
	_, err := fmt.Fprintf(w, "WEBVTT\n")
	if err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}

	source := html.EscapeString(t.Source)
	for i, s := range t.Spans {
		_, err = fmt.Fprintf(w, "\n%s --> %s\n", vttTS(s.StartTS, true), vttTS(s.EndTS, true))
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
		tmpl := "<v %[1]s>(%[1]s) speech %[2]d\n"
		if opts.OmitSource {
			tmpl = "speech %[2]d\n"
		}
		_, err = fmt.Fprintf(w, tmpl, source, i+1)
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
