// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chart extracts inline chart markers from assistant text.
//
// The backend embeds chart definitions in the answer as
//
//	CHART_DATA:{json}:END_CHART
//	CHART_ERROR:{json}:END_CHART
//
// Extract strips every marker from the visible text and returns the parsed
// objects. Chart rendering itself happens elsewhere.
package chart

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Kind distinguishes charts from chart generation failures.
type Kind string

const (
	KindData  Kind = "data"
	KindError Kind = "error"
)

// Chart is one extracted marker payload.
type Chart struct {
	Kind Kind            `json:"kind"`
	Spec json.RawMessage `json:"spec"`
}

// Title returns the "title" member of the chart definition, if present.
func (c Chart) Title() string {
	var v struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(c.Spec, &v); err != nil {
		return ""
	}
	return v.Title
}

// Type returns the "type" member of the chart definition (bar, line, pie...), if present.
func (c Chart) Type() string {
	var v struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(c.Spec, &v); err != nil {
		return ""
	}
	return v.Type
}

// Result is the outcome of Extract.
type Result struct {
	// Text is the input with all markers removed.
	Text string

	// Charts holds the well-formed CHART_DATA objects in order.
	Charts []Chart

	// Errors holds the well-formed CHART_ERROR objects in order.
	Errors []Chart
}

// markerRE matches one complete marker, non-greedy so adjacent markers stay
// separate.
var markerRE = regexp.MustCompile(`(?s)CHART_(DATA|ERROR):(.*?):END_CHART`)

// HasMarker reports whether text contains at least one complete marker.
func HasMarker(text string) bool {
	return markerRE.MatchString(text)
}

// Extract removes every marker from text. Malformed JSON inside a marker is
// discarded; the marker is still stripped. Removal repeats until no marker
// remains, so Extract(Extract(t).Text).Text == Extract(t).Text.
func Extract(text string) Result {
	var res Result
	for {
		matches := markerRE.FindAllStringSubmatchIndex(text, -1)
		if len(matches) == 0 {
			break
		}

		var out bytes.Buffer
		last := 0
		for _, m := range matches {
			out.WriteString(text[last:m[0]])
			last = m[1]

			kind := text[m[2]:m[3]]
			body := bytes.TrimSpace([]byte(text[m[4]:m[5]]))
			if !json.Valid(body) || !isObject(body) {
				continue
			}
			c := Chart{Spec: json.RawMessage(append([]byte(nil), body...))}
			if kind == "DATA" {
				c.Kind = KindData
				res.Charts = append(res.Charts, c)
			} else {
				c.Kind = KindError
				res.Errors = append(res.Errors, c)
			}
		}
		out.WriteString(text[last:])
		text = out.String()
	}
	res.Text = text
	return res
}

// markerOpeners start a marker; Settled holds text back from them.
var markerOpeners = []string{"CHART_DATA:", "CHART_ERROR:"}

// Settled returns the part of an Extract result that later text cannot turn
// into a marker. It cuts at the first opener left without ":END_CHART", or at
// a trailing fragment of one such as "CHART_D".
func Settled(text string) string {
	cut := len(text)
	for _, o := range markerOpeners {
		if i := strings.Index(text, o); i >= 0 && i < cut {
			cut = i
		}
	}
	head := text[:cut]
	partial := 0
	for _, o := range markerOpeners {
		for k := len(o) - 1; k > partial; k-- {
			if strings.HasSuffix(head, o[:k]) {
				partial = k
				break
			}
		}
	}
	return head[:len(head)-partial]
}

func isObject(body []byte) bool {
	return len(body) > 0 && body[0] == '{'
}
