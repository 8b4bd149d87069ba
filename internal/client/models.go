package client

// Content is a single conversational turn in the backend's request format.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part represents a single part of a message's content. Exactly one of the
// fields is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64-encoded media embedded directly in a part.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerateContentRequest is the request payload for the generateContent
// endpoint. The optional generationConfig object is spliced in after
// marshaling, so it does not appear here.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}
