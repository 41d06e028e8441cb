// Package vectorstore holds the retrieval backends behind semantic search.
//
// Each sub-package implements search.Backend, reporting scores in its native
// metric, and domain.DocumentIndexer so the graph indexer can feed it:
//
//	keyword  bleve full-text index, bm25-style scores
//	local    embeddings kept in the SQLite database, cosine distance
//	qdrant   Qdrant collection, cosine similarity or euclidean distance
package vectorstore
