// Package docx converts the body of a Word document into simple HTML markup.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	documentPart = "word/document.xml"
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

var (
	ErrNotDocx      = errors.New("file is not a docx document")
	ErrMissingBody  = errors.New("docx has no word/document.xml")
	placeholderSpan = regexp.MustCompile(`\{\{[^{}]*\}\}`)

	// maxBodySize caps the decompressed size of word/document.xml.
	maxBodySize int64 = 32 << 20

	errBodyTooLarge = fmt.Errorf("%w: %s is too large", ErrNotDocx, documentPart)
)

type format struct {
	bold      bool
	italic    bool
	underline bool
}

type segment struct {
	text string
	fmt  format
}

type paragraph struct {
	style    string
	rtl      bool
	segments []segment
}

// ToHTML renders word/document.xml as <p>, <h1>..<h3>, inline <strong>/<em>/<u>,
// <br/> and tables. Runs of one paragraph are merged so that a {{placeholder}}
// split by Word across runs comes out as one piece of text.
func ToHTML(r io.ReaderAt, size int64) (string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotDocx, err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return "", ErrMissingBody
	}
	if part.UncompressedSize64 > uint64(maxBodySize) {
		return "", errBodyTooLarge
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", documentPart, err)
	}
	defer rc.Close()

	// The header size is not trusted; the stream is capped as well.
	return convert(&cappedReader{r: rc, left: maxBodySize})
}

type cappedReader struct {
	r    io.Reader
	left int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		var extra [1]byte
		if n, _ := c.r.Read(extra[:]); n > 0 {
			return 0, errBodyTooLarge
		}
		return 0, io.EOF
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}

// FromBytes is ToHTML for an in-memory file.
func FromBytes(data []byte) (string, error) {
	return ToHTML(bytes.NewReader(data), int64(len(data)))
}

func convert(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out     strings.Builder
		para    *paragraph
		run     format
		inRun   bool
		inRunPr bool
		inText  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				out.WriteString("<table>")
			case "tr":
				out.WriteString("<tr>")
			case "tc":
				out.WriteString("<td>")
			case "p":
				para = &paragraph{}
			case "pStyle":
				if para != nil {
					para.style = attr(t, "val")
				}
			case "bidi":
				if para != nil && on(t) {
					para.rtl = true
				}
			case "r":
				inRun, run = true, format{}
			case "rPr":
				inRunPr = inRun
			case "b":
				if inRunPr {
					run.bold = on(t)
				}
			case "i":
				if inRunPr {
					run.italic = on(t)
				}
			case "u":
				if inRunPr {
					v := attr(t, "val")
					run.underline = v != "none" && v != "0" && v != "false"
				}
			case "rtl":
				if inRunPr && para != nil && on(t) {
					para.rtl = true
				}
			case "t":
				inText = inRun
			case "tab":
				if inRun && para != nil {
					para.segments = append(para.segments, segment{text: " ", fmt: run})
				}
			case "br", "cr":
				if inRun && para != nil {
					para.segments = append(para.segments, segment{text: "\n", fmt: run})
				}
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				out.WriteString("</table>")
			case "tr":
				out.WriteString("</tr>")
			case "tc":
				out.WriteString("</td>")
			case "p":
				if para != nil {
					writeParagraph(&out, para)
					para = nil
				}
			case "r":
				inRun = false
			case "rPr":
				inRunPr = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && para != nil {
				para.segments = append(para.segments, segment{text: string(t), fmt: run})
			}
		}
	}

	return out.String(), nil
}

func writeParagraph(out *strings.Builder, p *paragraph) {
	tag := paragraphTag(p.style)
	out.WriteString("<" + tag)
	if p.rtl {
		out.WriteString(` dir="rtl"`)
	}
	out.WriteString(">")

	segments := mergeRuns(p.segments)
	if len(segments) == 0 {
		out.WriteString("<br/>")
	}
	for _, s := range segments {
		writeSegment(out, s)
	}
	out.WriteString("</" + tag + ">")
}

func writeSegment(out *strings.Builder, s segment) {
	if s.fmt.bold {
		out.WriteString("<strong>")
	}
	if s.fmt.italic {
		out.WriteString("<em>")
	}
	if s.fmt.underline {
		out.WriteString("<u>")
	}
	lines := strings.Split(s.text, "\n")
	for i, line := range lines {
		if i > 0 {
			out.WriteString("<br/>")
		}
		out.WriteString(html.EscapeString(line))
	}
	if s.fmt.underline {
		out.WriteString("</u>")
	}
	if s.fmt.italic {
		out.WriteString("</em>")
	}
	if s.fmt.bold {
		out.WriteString("</strong>")
	}
}

// mergeRuns joins the paragraph text and regroups it by formatting. Every
// placeholder takes the formatting of its first character.
func mergeRuns(segments []segment) []segment {
	var text strings.Builder
	var fmts []format
	for _, s := range segments {
		text.WriteString(s.text)
		for i := 0; i < len(s.text); i++ {
			fmts = append(fmts, s.fmt)
		}
	}
	full := text.String()
	if full == "" {
		return nil
	}

	for _, loc := range placeholderSpan.FindAllStringIndex(full, -1) {
		for i := loc[0] + 1; i < loc[1]; i++ {
			fmts[i] = fmts[loc[0]]
		}
	}

	var out []segment
	start := 0
	for i := 1; i <= len(full); i++ {
		if i == len(full) || fmts[i] != fmts[start] {
			out = append(out, segment{text: full[start:i], fmt: fmts[start]})
			start = i
		}
	}
	return out
}

func paragraphTag(style string) string {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "title" || s == "heading1" || s == "1":
		return "h1"
	case s == "heading2" || s == "2":
		return "h2"
	case s == "heading3" || s == "3":
		return "h3"
	}
	return "p"
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// on reads a Word toggle property: present with no value means true.
func on(t xml.StartElement) bool {
	switch attr(t, "val") {
	case "0", "false", "off", "none":
		return false
	}
	return true
}
