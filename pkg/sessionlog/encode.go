// Copyright 2025 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sessionlog

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from the extension of path, falling
// back to XML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatXML
	}
}

// action is the on-disk shape of an Entry. Field order is part of the
// artifact's compatibility surface.
type action struct {
	Timestamp string `xml:"timestamp" json:"timestamp" yaml:"timestamp"`
	Command   string `xml:"command" json:"command" yaml:"command"`
	Status    Status `xml:"status" json:"status" yaml:"status"`
	Message   string `xml:"message" json:"message" yaml:"message"`
}

type session struct {
	XMLName xml.Name `xml:"session" json:"-" yaml:"-"`
	Actions []action `xml:"action" json:"actions" yaml:"actions"`
}

func (l *Log) document() session {
	doc := session{Actions: make([]action, 0, len(l.entries))}
	for _, e := range l.entries {
		doc.Actions = append(doc.Actions, action{
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Command:   e.Command,
			Status:    e.Status,
			Message:   e.Message,
		})
	}
	return doc
}

// Encode writes the whole log to w as a single document.
func (l *Log) Encode(w io.Writer, format Format) error {
	doc := l.document()

	switch format {
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown session log format %q", format)
	}
}
