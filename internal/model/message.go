package model

// StoredMessage is one edit-tracking ledger entry: the last known text of a
// relayed message and when it was sent or last edited. Entries are overwritten
// on every edit so only a single generation of history is kept.
type StoredMessage struct {
	Text string `json:"text"`
	Date int64  `json:"date"`
}
