package report

import (
	"fmt"
	"io"
	"log/slog"
)

// TextOptions control how close speech spans are merged in the text report.
// The zero value disables merging.
type TextOptions struct {
	// Spans separated by less than this pause are merged.
	MergeGapMs int
	// Upper bound of a merged span's duration.
	MaxSpanMs int
}

func (o *TextOptions) SetDefaults() {
	o.MergeGapMs = 2000
	o.MaxSpanMs = 10000
}

func (o TextOptions) IsValid() error {
	if o.MergeGapMs <= 0 {
		return fmt.Errorf("MergeGapMs should be a positive number")
	}
	if o.MaxSpanMs <= 0 {
		return fmt.Errorf("MaxSpanMs should be a positive number")
	}
	return nil
}

func mergeSpans(spans []Span, opts TextOptions) []Span {
	if len(spans) < 2 {
		return spans
	}

	out := []Span{spans[0]}

	for i := 1; i < len(spans); i++ {
		curr := spans[i]
		last := &out[len(out)-1]

		if int(curr.StartTS-spans[i-1].EndTS) < opts.MergeGapMs &&
			int(curr.EndTS-last.StartTS) < opts.MaxSpanMs {
			last.EndTS = curr.EndTS
		} else {
			out = append(out, curr)
		}
	}

	slog.Debug("spans merged", slog.Int("inLen", len(spans)), slog.Int("outLen", len(out)))

	return out
}

func (t Timeline) Text(w io.Writer, opts TextOptions) error {
	spans := t.Spans

	if opts != (TextOptions{}) {
		spans = mergeSpans(spans, opts)
	}

	for i, s := range spans {
		nl := "\n"
		if i == 0 {
			nl = ""
		}
		_, err := fmt.Fprintf(w, "%s%v -> %v\n", nl, vttTS(s.StartTS, false), vttTS(s.EndTS, false))
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\nspeech %.1fs\n", t.Source, float64(s.DurationMs())/1000)
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
