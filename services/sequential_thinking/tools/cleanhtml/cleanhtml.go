// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cleanhtml strips documents down to content markup: head, scripts,
// styles, and comments are removed, tags outside a fixed allow-list are
// unwrapped in place, and event-handler attributes are dropped.
package cleanhtml

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/session"
)

// allowedTags is the fixed set of structural tags that survive cleaning.
var allowedTags = map[string]bool{
	"div": true, "p": true, "span": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "tr": true, "td": true, "th": true, "thead": true, "tbody": true,
	"a": true, "img": true, "button": true, "input": true, "select": true,
	"option": true, "form": true, "label": true,
	"section": true, "article": true, "header": true, "footer": true,
	"nav": true, "main": true, "aside": true,
	"details": true, "summary": true, "figure": true, "figcaption": true,
}

// removedAttrs are dropped from surviving tags; id, class, href, src and
// other useful attributes stay. Any on* handler is dropped regardless.
var removedAttrs = map[string]bool{
	"style": true, "onclick": true, "onmouseover": true, "onmouseout": true,
	"onload": true, "onerror": true, "onkeyup": true, "onkeydown": true,
	"onchange": true, "data-reactid": true,
}

var multiSpace = regexp.MustCompile(`\s{2,}`)

// Result is the cleaning outcome.
type Result struct {
	CleanedHTML string `json:"cleaned_html,omitempty"`
	TextContent string `json:"text_content"`
	Status      string `json:"status"`
}

// Clean filters an HTML document through the allow-list.
//
// With keepStructure, surviving markup is rendered from the body down;
// without it only the flattened text content is returned.
func Clean(htmlContent string, keepStructure bool) (Result, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return Result{Status: "error"}, fmt.Errorf("parse html: %w", err)
	}

	removeNonContent(doc)

	body := findElement(doc, "body")
	text := extractText(doc)

	if !keepStructure {
		return Result{TextContent: text, Status: "success"}, nil
	}

	root := body
	if root == nil {
		root = doc
	}
	cleanTree(root)

	var b strings.Builder
	if err := html.Render(&b, root); err != nil {
		return Result{Status: "error"}, fmt.Errorf("render html: %w", err)
	}
	cleaned := multiSpace.ReplaceAllString(b.String(), " ")

	return Result{CleanedHTML: cleaned, TextContent: text, Status: "success"}, nil
}

// removeNonContent drops head, script and style subtrees, comments, and
// stylesheet links from the whole document.
func removeNonContent(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && (c.Data == "head" || c.Data == "script" || c.Data == "style"):
			n.RemoveChild(c)
		case c.Type == html.ElementNode && c.Data == "link" && attrValue(c, "rel") == "stylesheet":
			n.RemoveChild(c)
		default:
			removeNonContent(c)
		}
		c = next
	}
}

// cleanTree unwraps disallowed elements (their children are lifted into the
// parent and revisited) and filters attributes on surviving elements.
func cleanTree(parent *html.Node) {
	c := parent.FirstChild
	for c != nil {
		if c.Type != html.ElementNode {
			c = c.NextSibling
			continue
		}

		if !allowedTags[strings.ToLower(c.Data)] {
			next := c.NextSibling
			var first *html.Node
			for gc := c.FirstChild; gc != nil; gc = c.FirstChild {
				c.RemoveChild(gc)
				parent.InsertBefore(gc, c)
				if first == nil {
					first = gc
				}
			}
			parent.RemoveChild(c)
			if first != nil {
				c = first
			} else {
				c = next
			}
			continue
		}

		c.Attr = filterAttrs(c.Attr)
		cleanTree(c)
		c = c.NextSibling
	}
}

func filterAttrs(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if removedAttrs[key] || strings.HasPrefix(key, "on") {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func extractText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// Tool adapts Clean to the dispatcher's tool contract. The bound session is
// ignored; cleaning has no session affinity.
func Tool() func(ctx context.Context, sess *session.ThinkingSession, args json.RawMessage) (any, error) {
	type request struct {
		HTMLContent   string `json:"html_content"`
		KeepStructure *bool  `json:"keep_structure"`
	}

	return func(_ context.Context, _ *session.ThinkingSession, args json.RawMessage) (any, error) {
		var req request
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("invalid clean_html arguments: %w", err)
		}
		if req.HTMLContent == "" {
			return nil, fmt.Errorf("html_content cannot be empty")
		}
		keep := true
		if req.KeepStructure != nil {
			keep = *req.KeepStructure
		}
		return Clean(req.HTMLContent, keep)
	}
}
