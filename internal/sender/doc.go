// Package sender delivers one line-oriented command over a fresh TCP
// connection and optionally captures a single line of reply.
//
// Every exchange dials, writes, optionally reads, and closes. Nothing is
// shared between calls: no pooling, retries, or pipelining.
package sender
