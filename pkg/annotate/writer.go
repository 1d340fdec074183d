// Package annotate injects the "last modified" line into generated pages.
package annotate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	articleClass      = "content wrap"
	contributionClass = "contribution"
	itemClass         = "contribution-mod"
)

// Stamp is what gets written: a point in time and, when it comes from
// history, the author.
type Stamp struct {
	When   time.Time
	Author string
}

type Options struct {
	Locale      string         // BCP 47, default "de"
	Label       string         // overrides the localized "modified" label
	AuthorLabel string         // overrides the localized "by" label
	DateLayout  string         // overrides the localized date layout
	Location    *time.Location // display zone, default time.Local
}

type Writer struct {
	labels   Labels
	location *time.Location
}

func NewWriter(opts Options) *Writer {
	labels := LabelsFor(opts.Locale)
	if opts.Label != "" {
		labels.Modified = opts.Label
	}
	if opts.AuthorLabel != "" {
		labels.Author = opts.AuthorLabel
	}
	if opts.DateLayout != "" {
		labels.DateLayout = opts.DateLayout
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Writer{labels: labels, location: loc}
}

// Line renders the annotation text; the author part is empty without author.
func (w *Writer) Line(s Stamp) (string, string) {
	date := fmt.Sprintf("%s %s", w.labels.Modified, s.When.In(w.location).Format(w.labels.DateLayout))
	if s.Author == "" {
		return date, ""
	}
	return date, fmt.Sprintf("%s %s", w.labels.Author, s.Author)
}

// Write inserts the stamp as the first item of the page's contribution list
// and saves the page once. Pages without the article container or without a
// contribution list are left untouched and reported as false.
// A previous stamp in the same list is replaced.
func (w *Writer) Write(outputPath string, s Stamp) (bool, error) {
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return false, fmt.Errorf("read page: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("parse page %s: %w", outputPath, err)
	}

	// 1. Both anchors must exist
	if findElement(doc, atom.Article, articleClass) == nil {
		return false, nil
	}
	list := contributionList(doc)
	if list == nil {
		return false, nil
	}

	// 2. Replace any earlier stamp, then insert first
	removeStamps(list)
	list.InsertBefore(w.item(s), list.FirstChild)

	// 3. Save once
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return false, fmt.Errorf("render page %s: %w", outputPath, err)
	}
	if err := replaceFile(outputPath, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Writer) item(s Stamp) *html.Node {
	li := &html.Node{
		Type:     html.ElementNode,
		Data:     "li",
		DataAtom: atom.Li,
		Attr:     []html.Attribute{{Key: "class", Val: itemClass}},
	}
	date, author := w.Line(s)
	li.AppendChild(&html.Node{Type: html.TextNode, Data: date})
	if author != "" {
		li.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
		li.AppendChild(&html.Node{Type: html.TextNode, Data: author})
	}
	return li
}

// -----------------------------------------------------------------------------
// DOM helpers
// -----------------------------------------------------------------------------

func classContains(n *html.Node, substr string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(a.Val, substr) {
			return true
		}
	}
	return false
}

// findElement returns the first element in document order.
func findElement(n *html.Node, tag atom.Atom, class string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag && classContains(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag, class); found != nil {
			return found
		}
	}
	return nil
}

// contributionList finds the first <ul> that is a direct child of a
// contribution <div>.
func contributionList(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Div && classContains(n, contributionClass) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Ul {
				return c
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := contributionList(c); found != nil {
			return found
		}
	}
	return nil
}

func removeStamps(list *html.Node) {
	for c := list.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && c.DataAtom == atom.Li && hasClass(c, itemClass) {
			list.RemoveChild(c)
		}
		c = next
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, f := range strings.Fields(a.Val) {
			if f == class {
				return true
			}
		}
	}
	return false
}

// replaceFile writes next to the target and renames over it, keeping the mode.
func replaceFile(target string, data []byte) error {
	mode := os.FileMode(0644)
	if fi, err := os.Stat(target); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".lastmod-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
