package vectorstore

import (
	"github.com/qdrant/go-client/qdrant"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
)

// maxPayloadContent caps stored chunk text to stay within payload size limits.
const maxPayloadContent = 40000

// payloadFromChunk flattens chunk fields into a Qdrant payload map.
func payloadFromChunk(chunk document.Chunk) map[string]any {
	content := chunk.Content
	if len(content) > maxPayloadContent {
		content = content[:maxPayloadContent]
	}

	payload := map[string]any{
		"content":      content,
		"content_type": string(chunk.ContentType),
		"filename":     chunk.Metadata.Filename,
		"page":         chunk.Metadata.Page,
		"section":      chunk.Metadata.Section,
		"content_hash": chunk.Metadata.ContentHash,
		"source_url":   chunk.Metadata.SourceURL,
	}

	if chunk.Metadata.ImageData != "" {
		payload["image_data"] = chunk.Metadata.ImageData
	}
	if len(chunk.Metadata.RelatedImageURLs) > 0 {
		urls := make([]interface{}, len(chunk.Metadata.RelatedImageURLs))
		for i, u := range chunk.Metadata.RelatedImageURLs {
			urls[i] = u
		}
		payload["related_image_urls"] = urls
	}

	return payload
}

// chunkFromPayload rebuilds a chunk from a stored payload. Embeddings are not
// round-tripped; retrieval does not need them.
func chunkFromPayload(id string, payload map[string]*qdrant.Value) document.Chunk {
	var related []string
	if list := payload["related_image_urls"].GetListValue(); list != nil {
		for _, val := range list.Values {
			related = append(related, val.GetStringValue())
		}
	}

	return document.Chunk{
		ID:          id,
		Content:     payload["content"].GetStringValue(),
		ContentType: document.ContentType(payload["content_type"].GetStringValue()),
		Metadata: document.Metadata{
			Filename:         payload["filename"].GetStringValue(),
			Page:             int(payload["page"].GetIntegerValue()),
			Section:          payload["section"].GetStringValue(),
			ContentHash:      payload["content_hash"].GetStringValue(),
			SourceURL:        payload["source_url"].GetStringValue(),
			ImageData:        payload["image_data"].GetStringValue(),
			RelatedImageURLs: related,
		},
	}
}
