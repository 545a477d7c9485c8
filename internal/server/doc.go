// Package server is the HTTP transport shim over the session orchestrator.
//
// # Endpoints
//
//   - POST /api/chat: text turn for a device
//   - POST /api/voice: multipart audio turn (transcribed first)
//   - GET  /api/tts: render reply text as MP3 speech
//   - GET  /api/history/{deviceID}: conversation log
//   - GET  /api/sessions, /api/sessions/{deviceID}: session inspection
//   - GET  /ws: dashboard WebSocket feed of turn events
//   - GET  /healthz: liveness
//
// The server holds no turn logic of its own: validation and JSON shaping
// happen here, everything else is delegated. Reasoning failures surface as
// 502, persistence failures as 500, bad input as 400/422.
package server
