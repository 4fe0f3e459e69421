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

// Package similarity provides embedding based semantic search over stored nodes.
//
// The Index keeps no embedding data of its own. Every node's embedding record
// lives in node storage and carries the algorithm tag and EmbeddingVersion that
// produced it; records with a different tag or version are stale and are never
// compared against a query.
//
// # Search
//
// Search embeds the query phrase, scans every node id, and keeps nodes whose
// cosine distance to the query is below the configured maximum:
//
//	idx, err := similarity.New(repo, provider)
//	matches, err := idx.Search(ctx, "manic criminal", nil)
//	for _, m := range matches {
//		fmt.Println(m.Node.Id, m.Distance)
//		if m.Quote != nil {
//			fmt.Println(m.Quote.Match)
//		}
//	}
//
// Search honours context cancellation between candidates. A cancelled search
// returns an error matching both ErrCancelled and the context error.
//
// # Maintenance
//
// Start registers a node storage listener and recomputes embeddings for
// created and updated nodes on a background worker. Events are processed in
// arrival order but are not awaited by the writer, so a search issued right
// after an update may still see the previous embedding. Start also runs an
// integrity sweep that refreshes any stale or missing embeddings at a
// throttled rate. Close stops both.
package similarity
