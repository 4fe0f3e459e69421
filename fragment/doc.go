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

// Package fragment finds the passage that explains why two texts are related.
//
// The building block is LongestCommonRun, a longest common substring over
// token stems. FindLongestCommonContinuousPiece applies it to two whole
// documents; FindQuote picks the sentence of a document that best answers a
// query and highlights the query terms inside it. Both attach a few words of
// surrounding context for display.
package fragment
