// Package diagnostics talks to the MedAI diagnostics endpoint and validates
// what comes back before anyone renders it.
package diagnostics

import (
	"context"
	"net/http"

	"github.com/griff-web/medai-client/internal/capture"
	"github.com/griff-web/medai-client/internal/envelope"
)

// Mode selects the scan modality sent alongside the image.
type Mode string

const (
	ModeXRay       Mode = "xray"
	ModeCT         Mode = "ct"
	ModeMRI        Mode = "mri"
	ModeUltrasound Mode = "ultrasound"
)

// KnownModes lists the modalities the backend understands.
var KnownModes = []Mode{ModeXRay, ModeCT, ModeMRI, ModeUltrasound}

// ParseMode maps a user-supplied string onto a known Mode, defaulting to xray.
func ParseMode(value string) (Mode, bool) {
	for _, mode := range KnownModes {
		if string(mode) == value {
			return mode, true
		}
	}
	return ModeXRay, value == ""
}

// TokenSource supplies the current bearer token, empty when logged out.
type TokenSource interface {
	Token() string
}

// AnalysisRequest carries one image and its scan modality. Constructed fresh
// per call and discarded after the call resolves.
type AnalysisRequest struct {
	Payload capture.Payload
	Mode    Mode
}

// Client submits analysis requests through the resilient envelope. A new call
// for the same logical action cancels the previous in-flight one.
type Client struct {
	baseURL     string
	processPath string
	uploadField string
	env         *envelope.Envelope
	tokens      TokenSource
	gate        envelope.Gate
}

// NewClient constructs a diagnostics client. uploadField is the multipart
// field name fixed by the backend contract.
func NewClient(baseURL, processPath, uploadField string, env *envelope.Envelope, tokens TokenSource) *Client {
	if processPath == "" {
		processPath = "/diagnostics/process"
	}
	if uploadField == "" {
		uploadField = "image"
	}
	return &Client{
		baseURL:     baseURL,
		processPath: processPath,
		uploadField: uploadField,
		env:         env,
		tokens:      tokens,
	}
}

// Analyze posts the image as multipart form data and returns the validated
// report. Errors carry an envelope.Kind; caller cancellation comes back as
// the bare context error.
func (c *Client) Analyze(ctx context.Context, req AnalysisRequest) (Report, error) {
	callCtx, release := c.gate.Start(ctx)
	defer release()

	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}

	raw, err := c.env.Do(callCtx, envelope.Request{
		Method: http.MethodPost,
		URL:    envelope.JoinURL(c.baseURL, c.processPath),
		Token:  token,
		File: &envelope.FilePayload{
			FieldName:   c.uploadField,
			Filename:    req.Payload.Filename,
			ContentType: req.Payload.ContentType,
			Data:        req.Payload.Data,
		},
		Fields: map[string]string{"type": string(req.Mode)},
	})
	if err != nil {
		return Report{}, err
	}
	return ParseReport(raw)
}
