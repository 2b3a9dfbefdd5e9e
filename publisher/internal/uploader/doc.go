// Package uploader implements the content publisher's upload cycle: read the
// feed file, parse it, serialize it as JSON and PUT it to the aggregation
// server with bounded retries, keeping the publisher's Lamport clock in step
// with the server. A scheduler repeats the cycle periodically, and a feed
// watcher can trigger an immediate out-of-band upload.
package uploader
