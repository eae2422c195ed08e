package review

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConsoleProvider collects verdicts interactively from a terminal. It
// prints the item, its confidence and alias hints, then reads one of
// y/n/c/s. EOF or "q" interrupts the session.
type ConsoleProvider struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsoleProvider creates a provider reading from in and prompting on out.
func NewConsoleProvider(in io.Reader, out io.Writer) *ConsoleProvider {
	return &ConsoleProvider{in: bufio.NewScanner(in), out: out}
}

func (p *ConsoleProvider) Verdict(item Item) (Verdict, error) {
	p.present(item)

	for {
		choices := "y=accept / n=reject / c=correct / s=skip / q=quit"
		if item.Kind == KindMissingField {
			choices = "c=correct / s=skip / q=quit"
		}
		fmt.Fprintf(p.out, "> %s: ", choices)
		line, ok := p.readLine()
		if !ok {
			return Verdict{}, ErrInterrupted
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "o", "oui":
			if item.Kind == KindMissingField {
				fmt.Fprintln(p.out, "field is missing; only correct or skip apply")
				continue
			}
			return Verdict{Action: ActionAccept}, nil
		case "n", "no", "non":
			if item.Kind == KindMissingField {
				fmt.Fprintln(p.out, "field is missing; only correct or skip apply")
				continue
			}
			return Verdict{Action: ActionReject}, nil
		case "c", "correct":
			fmt.Fprint(p.out, "> new value: ")
			text, ok := p.readLine()
			if !ok {
				return Verdict{}, ErrInterrupted
			}
			if strings.TrimSpace(text) == "" {
				fmt.Fprintln(p.out, "empty value; correction cancelled")
				continue
			}
			return Verdict{Action: ActionCorrect, Text: strings.TrimSpace(text)}, nil
		case "s", "skip":
			return Verdict{Action: ActionSkip}, nil
		case "q", "quit":
			return Verdict{}, ErrInterrupted
		default:
			fmt.Fprintln(p.out, "unrecognized choice")
		}
	}
}

func (p *ConsoleProvider) present(item Item) {
	switch item.Kind {
	case KindAnswer:
		fmt.Fprintf(p.out, "\nquestion: %s\n", item.Question)
		fmt.Fprintf(p.out, "answer:   %s\n", item.Answer)
		fmt.Fprintf(p.out, "confidence: %.2f\n", item.Confidence)
	case KindMissingField:
		fmt.Fprintf(p.out, "\nfield %s: missing\n", item.Spec.Name)
		if len(item.Spec.Aliases) > 0 {
			fmt.Fprintf(p.out, "also known as: %s\n", strings.Join(item.Spec.Aliases, ", "))
		}
	default:
		fmt.Fprintf(p.out, "\nfield %s: %v\n", item.Spec.Name, item.Value)
		if item.HasConfidence {
			fmt.Fprintf(p.out, "confidence: %.2f\n", item.Confidence)
		} else {
			fmt.Fprintln(p.out, "confidence: unknown")
		}
		if len(item.Spec.Aliases) > 0 {
			fmt.Fprintf(p.out, "also known as: %s\n", strings.Join(item.Spec.Aliases, ", "))
		}
	}
	for _, h := range item.History {
		fmt.Fprintf(p.out, "past correction (%s): %v\n", h.CreatedAt.Format("2006-01-02"), h.Value)
	}
	if item.RetryErr != nil {
		fmt.Fprintf(p.out, "!! %v\n", item.RetryErr)
	}
}

func (p *ConsoleProvider) readLine() (string, bool) {
	if !p.in.Scan() {
		return "", false
	}
	return p.in.Text(), true
}
