// ABOUTME: Wire types for the BidiGenerateContent protocol
// ABOUTME: Defines setup, realtime input and server content message shapes
package channel

import (
	"encoding/json"

	"github.com/parley-ai/parley-go/pkg/audio/codec"
)

// Message is one inbound event consumed by the core. All fields are
// optional and independently present per wire message.
type Message struct {
	Audio           *codec.Chunk
	CandidateText   string // incremental recognition of the user's speech
	InterviewerText string // incremental transcript of the agent's speech
	RawText         string // untagged model turn text, kept as a transcript fallback
}

// setupEnvelope is the first client message on a new connection
type setupEnvelope struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *content          `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

// realtimeInputEnvelope carries outbound audio chunks
type realtimeInputEnvelope struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// serverEnvelope is one inbound wire message
type serverEnvelope struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
}

type content struct {
	Parts []part `json:"parts,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

// newSetupEnvelope builds the session setup message
func newSetupEnvelope(model, systemPrompt string) setupEnvelope {
	env := setupEnvelope{
		Setup: setupConfig{
			Model: model,
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
			},
			InputAudioTranscription:  &struct{}{},
			OutputAudioTranscription: &struct{}{},
		},
	}
	if systemPrompt != "" {
		env.Setup.SystemInstruction = &content{
			Parts: []part{{Text: systemPrompt}},
		}
	}
	return env
}

// newRealtimeInputEnvelope wraps an encoded chunk for transmission
func newRealtimeInputEnvelope(chunk codec.Chunk) realtimeInputEnvelope {
	return realtimeInputEnvelope{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{{MIMEType: chunk.MIME, Data: chunk.Data}},
		},
	}
}

// parseServerMessage converts a raw wire message into a core Message.
// The second return reports whether the message carried setupComplete.
func parseServerMessage(data []byte) (Message, bool, error) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, false, err
	}

	if env.SetupComplete != nil {
		return Message{}, true, nil
	}

	var msg Message
	sc := env.ServerContent
	if sc == nil {
		return msg, false, nil
	}

	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" && msg.Audio == nil {
				msg.Audio = &codec.Chunk{
					Data: p.InlineData.Data,
					MIME: p.InlineData.MIMEType,
				}
			}
			// Some configurations return the agent's words as plain text
			// parts instead of an output transcription
			msg.RawText += p.Text
		}
	}
	if sc.InputTranscription != nil {
		msg.CandidateText = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		msg.InterviewerText = sc.OutputTranscription.Text
	}

	return msg, false, nil
}
