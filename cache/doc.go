// Package cache is a typed key/value store layered over a flat storage.KVArea.
//
// Keys and values are closed sets of variants. Every key kind has exactly
// one value kind:
//
//	AllLabelsKey{}          -> AllLabelsValue{Labels}
//	LabelClassKey{Label}    -> LabelClassValue{Class}
//	SignatureKey{}          -> SignatureValue{Signature, InternalVersion}
//
// A Store lives under a caller supplied prefix. EnsureValid compares the
// stored signature with the one the caller expects and wipes every other
// entry when they differ, so cached data derived from an old model or an old
// encoding is never read back.
//
// Multi-key operations are not transactional. A failure part way through
// EnsureValid leaves the signature unwritten, so the next call retries the
// wipe.
package cache
