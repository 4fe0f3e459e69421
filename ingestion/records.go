// Copyright 2025 Poiesic Systems
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

package ingestion

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/recall/core"
	"gopkg.in/yaml.v3"
)

// Record is one node of an import file.
type Record struct {
	Text        string `yaml:"text"`
	URL         string `yaml:"url"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	WebText     string `yaml:"webText"`
}

// Node converts the record. Bookmark fields are ignored without a url.
func (r Record) Node() *core.Node {
	node := &core.Node{Text: r.Text}
	if r.URL != "" {
		node.Bookmark = &core.Bookmark{
			URL:         r.URL,
			Title:       r.Title,
			Description: r.Description,
			WebText:     r.WebText,
		}
	}
	return node
}

// ReadRecords decodes every YAML document in r. Each document is a sequence
// of records.
func ReadRecords(r io.Reader) ([]*core.Node, error) {
	var nodes []*core.Node
	dec := yaml.NewDecoder(r)
	for doc := 0; ; doc++ {
		var records []Record
		if err := dec.Decode(&records); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decoding document %d: %w", doc, err)
		}
		for i, rec := range records {
			if strings.TrimSpace(rec.Text) == "" && rec.URL == "" {
				return nil, fmt.Errorf("%w: document %d record %d has no text and no url", ErrInvalidRecord, doc, i)
			}
			nodes = append(nodes, rec.Node())
		}
	}
	return nodes, nil
}
