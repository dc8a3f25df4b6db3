/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package station

// Metadata carries the embedded tags of a ready file. Title is always set
// (falling back to the filename stem); the rest are optional and empty when
// the file carries no tags.
type Metadata struct {
	Title    string `json:"title"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Usable reports whether the metadata is complete enough for fairness and
// transition logic. Placeholder and half-parsed entries are filtered out of
// the recency window with this.
func (m Metadata) Usable() bool { return m.Title != "" }
