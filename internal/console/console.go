// Package console prints the human-facing startup and shutdown messages.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

type Printer struct {
	out  io.Writer
	info *color.Color
	warn *color.Color
	fail *color.Color
	note *color.Color
}

func New(out io.Writer) *Printer {
	return &Printer{
		out:  out,
		info: color.New(color.FgGreen, color.Bold),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed, color.Bold),
		note: color.New(color.FgCyan),
	}
}

// Started prints the banner shown once the server is bound.
func (p *Printer) Started(url, root string, tls bool) {
	p.info.Fprintf(p.out, "Server started at %s\n", url)
	p.note.Fprintf(p.out, "Serving files from: %s\n", root)
	if tls {
		p.warn.Fprintln(p.out, "Using a self-signed certificate: your browser will warn before opening the page")
	} else {
		p.warn.Fprintln(p.out, "Warning: WebRTC features may not work without HTTPS!")
		p.note.Fprintln(p.out, "Enable TLS for microphone and camera access")
	}
	fmt.Fprintln(p.out, "\nPress Ctrl+C to stop the server")
	fmt.Fprintln(p.out, strings.Repeat("-", 50))
}

func (p *Printer) TLSUnavailable() {
	p.warn.Fprintln(p.out, "HTTPS unavailable, falling back to plain HTTP")
}

func (p *Printer) Stopped() {
	p.info.Fprintln(p.out, "\nServer stopped")
}

func (p *Printer) Error(format string, args ...interface{}) {
	p.fail.Fprintf(p.out, "Error: "+format+"\n", args...)
}

func (p *Printer) Hint(format string, args ...interface{}) {
	p.note.Fprintf(p.out, format+"\n", args...)
}
