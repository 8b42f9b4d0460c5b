package types

// MessageConnection is one page of messages, newest first.
type MessageConnection struct {
	Edges    []Message `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// PageInfo describes how to continue from a page.
type PageInfo struct {
	HasNextPage bool `json:"hasNextPage"`
	// EndCursor is the cursor of the last edge, nil for an empty page.
	EndCursor *string `json:"endCursor"`
}

// MessageCreated is the payload delivered to messageCreated subscribers.
type MessageCreated struct {
	Message Message `json:"message"`
}
