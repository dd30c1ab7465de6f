package model

// AutoReplyRule pairs a regexp pattern with a canned response. Rules live as
// an ordered JSON list under a single config key; evaluation order is list
// order and the first match wins.
type AutoReplyRule struct {
	ID       string `json:"id"`
	Keywords string `json:"keywords"`
	Response string `json:"response"`
}
