package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Stream sends the request in streaming mode and calls onChunk for every
// text delta as it arrives. It returns the concatenated text.
func (c *Client) Stream(ctx context.Context, req Request, onChunk func(string)) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	if err := c.allow(); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, req, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			continue
		}
		chunk, err := c.parseDelta(data)
		if err != nil {
			return full.String(), err
		}
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("read stream: %w", err)
	}
	if full.Len() == 0 {
		return "", ErrEmpty
	}
	return full.String(), nil
}

// parseDelta extracts the text delta from one server-sent event payload.
func (c *Client) parseDelta(data string) (string, error) {
	switch c.provider {
	case OpenAI:
		var ev struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return "", fmt.Errorf("parse stream event: %w", err)
		}
		if len(ev.Choices) == 0 {
			return "", nil
		}
		return ev.Choices[0].Delta.Content, nil
	default:
		var ev struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return "", fmt.Errorf("parse stream event: %w", err)
		}
		if ev.Type == "error" && ev.Error != nil {
			return "", fmt.Errorf("stream error: %s", ev.Error.Message)
		}
		if ev.Type != "content_block_delta" {
			return "", nil
		}
		return ev.Delta.Text, nil
	}
}
