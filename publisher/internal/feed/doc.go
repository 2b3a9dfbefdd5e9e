// Package feed reads a station's weather feed file: line-oriented key:value
// text with a mandatory id field. It also watches the file so a publisher can
// push changes immediately instead of waiting for the next periodic upload.
package feed
