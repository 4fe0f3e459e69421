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

// Package nlp turns raw text into the token stream the lexical index and the
// fragment matcher work on.
//
// Analyze splits text into word, number, punctuation and symbol tokens. Each
// token keeps its surface form and the whitespace that preceded it, so any run
// of tokens can be turned back into the original text for display. Words are
// Unicode-normalised, case-folded and stemmed with the Snowball English
// stemmer; stop words are flagged rather than removed so positions stay
// aligned with the source.
package nlp
