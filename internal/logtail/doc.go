// Package logtail reads the tail of a local log file.
//
// Read keeps a ring buffer of the last N lines, so memory stays O(N) no matter
// how large the file is. ReadMatching applies a predicate before the ring so
// the result is the newest N matching lines.
//
// Source adapts a file into a snapshot fetcher for offline use (perch -file):
// line numbers become entry ids, JSON lines and leading timestamps/levels are
// lifted into the parsed record, and the usual server-side filter semantics
// (search, regex, levels, afterId, limit) are applied locally.
//
// A missing file is not an error; it reads as empty.
package logtail
