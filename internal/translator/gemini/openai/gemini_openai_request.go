// Package openai provides request translation from OpenAI Chat Completions
// format to the Gemini generateContent format. It maps OpenAI roles onto the
// backend's role vocabulary, converts message content into backend parts, and
// resolves embedded image instructions, fetching remote images and inlining
// them as base64 data.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/mizuki-ao/geminigate/internal/apierr"
	"github.com/mizuki-ao/geminigate/internal/client"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// imageMarker opens a string-content image instruction.
	imageMarker = "#image"

	// imageDelimiter separates the marker, the image source, and the caption.
	imageDelimiter = "#split#"

	// dataURIPrefix identifies image sources carried inline rather than fetched.
	dataURIPrefix = "data:image/"
)

// fetchJob is one remote image download scheduled during translation.
type fetchJob struct {
	slot    int
	role    string
	caption string
	url     string
}

// ConvertOpenAIRequestToGemini converts the messages of an OpenAI Chat
// Completions request (raw JSON) into Gemini contents. Remote images named by
// image instructions are fetched concurrently; message order in the result
// matches the request regardless of fetch completion order. Messages that
// produce no parts, including those whose image fetch failed, are dropped.
//
// Parameters:
//   - ctx: The context for image fetches.
//   - rawJSON: The raw JSON request data from the OpenAI API.
//   - httpClient: The HTTP client used to fetch remote images.
//
// Returns:
//   - []client.Content: The translated contents in request order.
//   - bool: True if any message embedded image data.
//   - error: An error if the request carries malformed inline image data.
func ConvertOpenAIRequestToGemini(ctx context.Context, rawJSON []byte, httpClient *http.Client) ([]client.Content, bool, error) {
	messages := gjson.GetBytes(rawJSON, "messages").Array()

	slots := make([]*client.Content, len(messages))
	var jobs []fetchJob
	hasImage := false

	for i, m := range messages {
		role := mapRole(m.Get("role").String())
		content := m.Get("content")

		if content.Type == gjson.String {
			text := content.String()
			if text == "" {
				continue
			}
			source, caption, ok := splitImageInstruction(text)
			if !ok {
				slots[i] = &client.Content{Role: role, Parts: []client.Part{{Text: text}}}
				continue
			}
			if strings.HasPrefix(source, dataURIPrefix) {
				inline, err := parseDataURI(source)
				if err != nil {
					return nil, false, err
				}
				slots[i] = &client.Content{Role: role, Parts: imageParts(caption, inline)}
				hasImage = true
				continue
			}
			jobs = append(jobs, fetchJob{slot: i, role: role, caption: caption, url: source})
			continue
		}

		if content.IsArray() {
			parts := itemParts(content.Array())
			if len(parts) == 0 {
				continue
			}
			slots[i] = &client.Content{Role: role, Parts: parts}
		}
		// Any other content shape yields no parts and the message is dropped.
	}

	if len(jobs) > 0 {
		fetched := make([]bool, len(jobs))
		var wg sync.WaitGroup
		for idx := range jobs {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				job := jobs[idx]
				inline, err := fetchImage(ctx, httpClient, job.url)
				if err != nil {
					log.Warnf("dropping message: image fetch from %s failed: %v", job.url, err)
					return
				}
				slots[job.slot] = &client.Content{Role: job.role, Parts: imageParts(job.caption, inline)}
				fetched[idx] = true
			}(idx)
		}
		wg.Wait()
		for _, ok := range fetched {
			if ok {
				hasImage = true
			}
		}
	}

	contents := make([]client.Content, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			contents = append(contents, *c)
		}
	}
	return contents, hasImage, nil
}

// mapRole converts an OpenAI role to the backend's vocabulary. Only assistant
// has a distinct counterpart; system and unrecognized roles become user.
func mapRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

// splitImageInstruction recognizes the "#image#split#{source}#split#{caption}"
// content convention. The instruction must split into exactly three segments
// with the marker first; anything else is plain text.
func splitImageInstruction(text string) (source, caption string, ok bool) {
	segments := strings.Split(text, imageDelimiter)
	if len(segments) != 3 || segments[0] != imageMarker {
		return "", "", false
	}
	return segments[1], segments[2], true
}

// parseDataURI extracts the MIME type and base64 payload from an inline
// "data:image/...;base64,..." source. The payload is passed through without
// decoding.
func parseDataURI(source string) (*client.InlineData, error) {
	pieces := strings.SplitN(strings.TrimPrefix(source, "data:"), ",", 2)
	if len(pieces) != 2 {
		return nil, apierr.New(apierr.KindBadRequest, "Invalid base64 image format")
	}
	meta := strings.SplitN(pieces[0], ";", 2)
	if len(meta) != 2 || meta[1] != "base64" {
		return nil, apierr.New(apierr.KindBadRequest, "Invalid base64 image format")
	}
	return &client.InlineData{MimeType: meta[0], Data: pieces[1]}, nil
}

// fetchImage downloads a remote image and returns it base64-encoded. The MIME
// type comes from the response's Content-Type header when present.
func fetchImage(ctx context.Context, httpClient *http.Client, imageURL string) (*client.InlineData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Warnf("failed to close image response body: %v", errClose)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("image host returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &client.InlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}, nil
}

// imageParts builds the parts for an image message: the caption text first
// when present, then the inline image data.
func imageParts(caption string, inline *client.InlineData) []client.Part {
	parts := make([]client.Part, 0, 2)
	if caption != "" {
		parts = append(parts, client.Part{Text: caption})
	}
	return append(parts, client.Part{InlineData: inline})
}

// itemParts converts typed content items. Non-empty text items become text
// parts and image_url items pass the URL through as text without fetching it.
// Items of any other type contribute nothing.
func itemParts(items []gjson.Result) []client.Part {
	var parts []client.Part
	for _, item := range items {
		switch item.Get("type").String() {
		case "text":
			if text := item.Get("text").String(); text != "" {
				parts = append(parts, client.Part{Text: text})
			}
		case "image_url":
			parts = append(parts, client.Part{Text: "Image URL: " + item.Get("image_url.url").String()})
		}
	}
	return parts
}
