package guide

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/types"
)

const prompt = "You are a knowledgeable local tour guide speaking through smart glasses. " +
	"Given a photo of what the user is looking at and, when available, their street address, " +
	"describe the scene and anything notable about the place. Output JSON only, format: " +
	"{\"text\":\"string\"}. Keep it to 2-3 spoken sentences, warm and concrete. " +
	"Do not greet the user or mention the photo itself."

type narration struct {
	Text string `json:"text"`
}

// Engine turns a captured photo plus an optional address into a short spoken
// tour-guide description via Gemini.
type Engine struct {
	c     *genai.Client
	model string
}

func New(apiKey, model string) (*Engine, error) {
	tr := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		TLSClientConfig:   &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2: false,
		MaxIdleConns:      100,
		IdleConnTimeout:   90 * time.Second,
	}
	hc := &http.Client{Transport: tr, Timeout: 30 * time.Second}
	reqTimeout := 15 * time.Second
	cl, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: "v1",
			Timeout:    &reqTimeout,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Engine{c: cl, model: model}, nil
}

// Narrate describes the scene in the photo. address may be empty.
func (e *Engine) Narrate(ctx context.Context, photo types.StoredPhoto, address string) (string, error) {
	p := prompt
	if address != "" {
		p += " The user is at: " + address + "."
	}
	parts := []*genai.Part{
		{Text: p},
		{InlineData: &genai.Blob{Data: photo.Data, MIMEType: photo.MIMEType}},
	}

	temp := float32(0.4)
	topP := float32(0.9)
	maxTok := int32(1024)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text": {Type: genai.TypeString},
			},
			Required: []string{"text"},
		},
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: maxTok,
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		resp, err := e.c.Models.GenerateContent(ctx, e.model, []*genai.Content{{Parts: parts}}, cfg)
		if err != nil {
			lastErr = err
			if retriable(err) {
				time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
				continue
			}
			return "", err
		}
		if text, ok := parseNarration(resp); ok {
			return text, nil
		}
		lastErr = errors.New("empty response")
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return "", lastErr
}

func parseNarration(resp *genai.GenerateContentResponse) (string, bool) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.MIMEType == "application/json" {
				var n narration
				if json.Unmarshal(p.InlineData.Data, &n) == nil && n.Text != "" {
					return n.Text, true
				}
			}
			if p.Text != "" {
				var n narration
				if json.Unmarshal([]byte(p.Text), &n) == nil && n.Text != "" {
					return n.Text, true
				}
			}
		}
	}
	if t := resp.Text(); t != "" {
		return t, true
	}
	return "", false
}

func retriable(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected EOF") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "RST_STREAM") ||
		strings.Contains(s, "connection reset")
}
