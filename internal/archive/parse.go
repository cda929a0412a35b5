package archive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseError reports that a response from the archive could not be mapped
// to a typed result. All scraping of the archive's HTML and plaintext
// output funnels through the functions in this file, so a change in the
// portal's generator fails here with a clear diagnostic instead of an
// index panic somewhere downstream.
type ParseError struct {
	Source string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Source, e.Detail)
}

var requestNumberPattern = regexp.MustCompile(`Request #([0-9]+)`)

// ParseRequestNumber scans a submission response body for the
// "Request #<integer>" token.
func ParseRequestNumber(body string) (int, error) {
	m := requestNumberPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, &ParseError{
			Source: "submission response",
			Detail: "no 'Request #<n>' token; archive response format changed?",
		}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &ParseError{Source: "submission response", Detail: err.Error()}
	}
	return n, nil
}

// ParseRequestState extracts the text of the named state element from a
// request status page. The second return is false when the marker is
// absent, which happens when the portal redirects to a malformed
// intermediate page; callers treat that as transient.
func ParseRequestState(body string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	sel := doc.Find("#requestState")
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.First().Text()), true
}

// scriptDelimiter separates the here-document sections of the generated
// download script.
const scriptDelimiter = "__EOF__"

// ParseScriptPaths slices the remote file paths out of a generated
// download script: the section before the final delimiter, minus one
// header line and two trailer lines. Any deviation from that layout is a
// hard parse failure, not handled defensively beyond this slicing.
func ParseScriptPaths(body string) ([]string, error) {
	sections := strings.Split(body, scriptDelimiter)
	if len(sections) < 3 {
		return nil, &ParseError{
			Source: "download script",
			Detail: fmt.Sprintf("expected at least 2 %q delimiters, found %d", scriptDelimiter, len(sections)-1),
		}
	}

	lines := strings.Split(sections[len(sections)-2], "\n")
	if len(lines) < 3 {
		return nil, &ParseError{
			Source: "download script",
			Detail: "path section too short for header/trailer stripping",
		}
	}

	return lines[1 : len(lines)-2], nil
}
