package exporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"lastmodified/pkg/core"
	"lastmodified/pkg/history"
)

// PrintStructure prints commits and trees. For any other object it returns
// false and the caller decides how to show the content.
func PrintStructure(obj core.Object, w io.Writer) (bool, error) {
	switch o := obj.(type) {
	case *core.Commit:
		return true, printCommit(o, w)
	case *core.Tree:
		return true, printTree(o, w)
	default:
		return false, nil
	}
}

func printCommit(c *core.Commit, w io.Writer) error {
	fmt.Fprintf(w, "Type:      Commit\n")
	fmt.Fprintf(w, "Hash:      %s\n", c.ID())
	fmt.Fprintf(w, "Tree:      %s\n", c.TreeHash)
	for _, p := range c.Parents {
		fmt.Fprintf(w, "Parent:    %s\n", p)
	}
	fmt.Fprintf(w, "Author:    %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(w, "Time:      %s\n", c.Author.When.Format(time.RFC3339))
	_, err := fmt.Fprintf(w, "\n%s\n", strings.TrimRight(c.Message, "\n"))
	return err
}

func printTree(t *core.Tree, w io.Writer) error {
	fmt.Fprintf(w, "Type: Tree\n\n")

	// git ls-tree layout
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "MODE\tTYPE\tHASH\tNAME\n")
	for _, e := range t.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", fullMode(e.Mode), entryType(e), e.Hash.Short(), e.Name)
	}
	return tw.Flush()
}

// fullMode pads tree modes to six digits ("40000" -> "040000").
func fullMode(m core.EntryMode) string {
	if len(m) >= 6 {
		return string(m)
	}
	return strings.Repeat("0", 6-len(m)) + string(m)
}

func entryType(e core.TreeEntry) core.ObjectType {
	switch e.Mode {
	case core.ModeDir:
		return core.TypeTree
	case core.ModeSubmodule:
		return core.TypeCommit
	default:
		return core.TypeBlob
	}
}

// PrintCommitLog prints a commit the way `git log` does, with the date in loc.
func PrintCommitLog(w io.Writer, c *history.Commit, loc *time.Location) {
	const (
		colorYellow = "\033[33m"
		colorReset  = "\033[0m"
	)
	if loc == nil {
		loc = time.Local
	}

	fmt.Fprintf(w, "%scommit %s%s\n", colorYellow, c.ID, colorReset)
	if len(c.Parents) > 1 {
		fmt.Fprintf(w, "Merge:  ")
		for i, p := range c.Parents {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprint(w, p.Short())
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Author: %s <%s>\n", c.AuthorName, c.AuthorEmail)
	fmt.Fprintf(w, "Date:   %s\n", c.When.In(loc).Format(time.RFC1123Z))
	fmt.Fprintf(w, "\n    %s\n\n", c.Summary())
}
