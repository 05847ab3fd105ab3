// ABOUTME: Conversation channel package for the remote voice agent
// ABOUTME: Provides the websocket transport, wire types and error taxonomy
// Package channel connects to the remote conversational agent over a
// bidirectional websocket stream.
//
// The wire protocol is the Gemini Live "BidiGenerateContent" JSON
// protocol: a setup message carrying the system instruction opens the
// session, outbound audio travels as realtimeInput media chunks, and
// inbound serverContent messages carry synthesized audio plus
// incremental transcripts for both speakers.
//
// The core only ever touches a Handle through Send and Close; all
// inbound traffic arrives through the Callbacks supplied to Connect.
package channel
