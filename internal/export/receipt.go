// Package export renders transfer receipts as downloadable documents.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/punchamoorthee/coinwallet/internal/domain"
)

const (
	Unit         = "coins"
	BaseFileName = "transfer-receipt"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders r. Times are shown in loc; nil means UTC.
func Markdown(r domain.TransferReceipt, loc *time.Location) []byte {
	if loc == nil {
		loc = time.UTC
	}
	desc := r.Description
	if desc == "" {
		desc = "-"
	}

	var b strings.Builder
	b.WriteString("# Transfer receipt\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| From | %s |\n", escape(r.From.String()))
	fmt.Fprintf(&b, "| To | %s |\n", escape(r.To.String()))
	fmt.Fprintf(&b, "| Amount | %s %s |\n", r.Amount.String(), Unit)
	fmt.Fprintf(&b, "| Description | %s |\n", escape(desc))
	fmt.Fprintf(&b, "| Date | %s |\n", r.Timestamp.In(loc).Format("2006-01-02 15:04:05 MST"))
	b.WriteString("\nThank you for using coin.\n")
	return []byte(b.String())
}

// HTML renders r as a standalone HTML document.
func HTML(r domain.TransferReceipt, loc *time.Location) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(Markdown(r, loc), &body); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Transfer receipt</title></head><body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body></html>\n")
	return doc.Bytes(), nil
}

// FileName is the suggested download name for a format ("md" or "html").
func FileName(format string) string {
	return BaseFileName + "." + format
}

// escape keeps user text from breaking the table.
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
